package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"skoll/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short for specified instrument length")
	ErrInvalidSide        = errors.New("invalid side byte")
	ErrInstrumentTooLong  = errors.New("instrument name exceeds 255 bytes")
)

type MessageType int

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	LogBook
)

type Message interface {
	GetType() MessageType
}

// Message format constants. All integers are big endian on the wire;
// instrument names are length-prefixed.
const (
	BaseMessageHeaderLen        = 2
	NewOrderMessageHeaderLen    = 1 + 1 + 8 + 4
	CancelOrderMessageHeaderLen = 1 + 1 + 8
	LogBookMessageHeaderLen     = 1
)

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

// ParseMessage decodes one inbound client message.
func ParseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, errors.New("message too short to contain header")
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case NewOrder:
		return parseNewOrder(msg)
	case CancelOrder:
		return parseCancelOrder(msg)
	case LogBook:
		return parseLogBook(msg)
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

func parseSideByte(b byte) (common.Side, error) {
	side := common.Side(b)
	if side != common.Buy && side != common.Sell {
		return 0, ErrInvalidSide
	}
	return side, nil
}

type NewOrderMessage struct {
	BaseMessage
	Side       common.Side // 1 byte
	Price      int64       // 8 bytes
	Quantity   uint32      // 4 bytes
	Instrument string      // 1 byte length + n bytes
}

func (m NewOrderMessage) Serialize() ([]byte, error) {
	if len(m.Instrument) > 255 {
		return nil, ErrInstrumentTooLong
	}
	buf := make([]byte, BaseMessageHeaderLen+NewOrderMessageHeaderLen+len(m.Instrument))
	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))
	buf[2] = byte(m.Side)
	buf[3] = uint8(len(m.Instrument))
	binary.BigEndian.PutUint64(buf[4:12], uint64(m.Price))
	binary.BigEndian.PutUint32(buf[12:16], m.Quantity)
	copy(buf[16:], m.Instrument)
	return buf, nil
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	if len(msg) < NewOrderMessageHeaderLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}

	side, err := parseSideByte(msg[0])
	if err != nil {
		return NewOrderMessage{}, err
	}
	m.Side = side
	instrumentLen := int(msg[1])
	m.Price = int64(binary.BigEndian.Uint64(msg[2:10]))
	m.Quantity = binary.BigEndian.Uint32(msg[10:14])

	if len(msg) < NewOrderMessageHeaderLen+instrumentLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m.Instrument = string(msg[14 : 14+instrumentLen])

	return m, nil
}

type CancelOrderMessage struct {
	BaseMessage
	Side       common.Side // 1 byte
	OrderID    uint64      // 8 bytes
	Instrument string      // 1 byte length + n bytes
}

func (m CancelOrderMessage) Serialize() ([]byte, error) {
	if len(m.Instrument) > 255 {
		return nil, ErrInstrumentTooLong
	}
	buf := make([]byte, BaseMessageHeaderLen+CancelOrderMessageHeaderLen+len(m.Instrument))
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	buf[2] = byte(m.Side)
	buf[3] = uint8(len(m.Instrument))
	binary.BigEndian.PutUint64(buf[4:12], m.OrderID)
	copy(buf[12:], m.Instrument)
	return buf, nil
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	if len(msg) < CancelOrderMessageHeaderLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}

	side, err := parseSideByte(msg[0])
	if err != nil {
		return CancelOrderMessage{}, err
	}
	m.Side = side
	instrumentLen := int(msg[1])
	m.OrderID = binary.BigEndian.Uint64(msg[2:10])

	if len(msg) < CancelOrderMessageHeaderLen+instrumentLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	m.Instrument = string(msg[10 : 10+instrumentLen])

	return m, nil
}

type LogBookMessage struct {
	BaseMessage
	Instrument string // 1 byte length + n bytes
}

func (m LogBookMessage) Serialize() ([]byte, error) {
	if len(m.Instrument) > 255 {
		return nil, ErrInstrumentTooLong
	}
	buf := make([]byte, BaseMessageHeaderLen+LogBookMessageHeaderLen+len(m.Instrument))
	binary.BigEndian.PutUint16(buf[0:2], uint16(LogBook))
	buf[2] = uint8(len(m.Instrument))
	copy(buf[3:], m.Instrument)
	return buf, nil
}

func parseLogBook(msg []byte) (LogBookMessage, error) {
	if len(msg) < LogBookMessageHeaderLen {
		return LogBookMessage{}, ErrMessageTooShort
	}
	m := LogBookMessage{BaseMessage: BaseMessage{TypeOf: LogBook}}
	instrumentLen := int(msg[0])
	if len(msg) < LogBookMessageHeaderLen+instrumentLen {
		return LogBookMessage{}, ErrMessageTooShort
	}
	m.Instrument = string(msg[1 : 1+instrumentLen])
	return m, nil
}

// --- Outbound reports -------------------------------------------------------

type ReportMessageType byte

const (
	OrderAckReport ReportMessageType = iota
	ExecutionReport
	BestPriceReport
	ErrorReport
)

// Report is any server-to-client message.
type Report interface {
	Serialize() []byte
}

// OrderAck answers a NewOrder or CancelOrder request. A non-empty Err means
// the request was rejected and OrderID carries no meaning.
type OrderAck struct {
	Side       common.Side // 1 byte
	OrderID    uint64      // 8 bytes
	Err        string      // 2 byte length + n bytes
	Instrument string      // 1 byte length + n bytes
}

const orderAckFixedLen = 1 + 1 + 8 + 2 + 1

func (r OrderAck) Serialize() []byte {
	buf := make([]byte, orderAckFixedLen+len(r.Err)+len(r.Instrument))
	buf[0] = byte(OrderAckReport)
	buf[1] = byte(r.Side)
	binary.BigEndian.PutUint64(buf[2:10], r.OrderID)
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(r.Err)))
	buf[12] = uint8(len(r.Instrument))
	offset := orderAckFixedLen
	copy(buf[offset:], r.Err)
	offset += len(r.Err)
	copy(buf[offset:], r.Instrument)
	return buf
}

// Execution reports one fill against a resting order, at the resting
// order's price.
type Execution struct {
	OrderID    uint64 // 8 bytes
	Price      int64  // 8 bytes
	Quantity   uint32 // 4 bytes
	Instrument string // 1 byte length + n bytes
}

const executionFixedLen = 1 + 8 + 8 + 4 + 1

func (r Execution) Serialize() []byte {
	buf := make([]byte, executionFixedLen+len(r.Instrument))
	buf[0] = byte(ExecutionReport)
	binary.BigEndian.PutUint64(buf[1:9], r.OrderID)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Price))
	binary.BigEndian.PutUint32(buf[17:21], r.Quantity)
	buf[21] = uint8(len(r.Instrument))
	copy(buf[22:], r.Instrument)
	return buf
}

// BestPrice reports the current top of book. A nil quote means that side is
// empty; the wire carries an explicit presence flag per side rather than a
// sentinel price.
type BestPrice struct {
	Bid        *common.Quote
	Ask        *common.Quote
	Instrument string
}

const (
	bestPriceFixedLen = 1 + 1 + 8 + 8 + 8 + 8 + 1

	bidPresentFlag = 1 << 0
	askPresentFlag = 1 << 1
)

func (r BestPrice) Serialize() []byte {
	buf := make([]byte, bestPriceFixedLen+len(r.Instrument))
	buf[0] = byte(BestPriceReport)
	var flags byte
	if r.Bid != nil {
		flags |= bidPresentFlag
		binary.BigEndian.PutUint64(buf[2:10], uint64(r.Bid.Price))
		binary.BigEndian.PutUint64(buf[10:18], r.Bid.Quantity)
	}
	if r.Ask != nil {
		flags |= askPresentFlag
		binary.BigEndian.PutUint64(buf[18:26], uint64(r.Ask.Price))
		binary.BigEndian.PutUint64(buf[26:34], r.Ask.Quantity)
	}
	buf[1] = flags
	buf[34] = uint8(len(r.Instrument))
	copy(buf[35:], r.Instrument)
	return buf
}

// ErrorNotice carries a session-level failure back to the client.
type ErrorNotice struct {
	Err string // 2 byte length + n bytes
}

const errorNoticeFixedLen = 1 + 2

func (r ErrorNotice) Serialize() []byte {
	buf := make([]byte, errorNoticeFixedLen+len(r.Err))
	buf[0] = byte(ErrorReport)
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(r.Err)))
	copy(buf[3:], r.Err)
	return buf
}

// ParseReport reads exactly one report off the stream. It returns one of
// OrderAck, Execution, BestPrice or ErrorNotice.
func ParseReport(r io.Reader) (any, error) {
	var typeBuf [1]byte
	if _, err := io.ReadFull(r, typeBuf[:]); err != nil {
		return nil, err
	}

	switch ReportMessageType(typeBuf[0]) {
	case OrderAckReport:
		return parseOrderAck(r)
	case ExecutionReport:
		return parseExecution(r)
	case BestPriceReport:
		return parseBestPrice(r)
	case ErrorReport:
		return parseErrorNotice(r)
	default:
		return nil, fmt.Errorf("%w: report type %d", ErrInvalidMessageType, typeBuf[0])
	}
}

func parseOrderAck(r io.Reader) (OrderAck, error) {
	fixed := make([]byte, orderAckFixedLen-1)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return OrderAck{}, err
	}
	side, err := parseSideByte(fixed[0])
	if err != nil {
		return OrderAck{}, err
	}
	ack := OrderAck{
		Side:    side,
		OrderID: binary.BigEndian.Uint64(fixed[1:9]),
	}
	errLen := int(binary.BigEndian.Uint16(fixed[9:11]))
	instrumentLen := int(fixed[11])

	varBuf := make([]byte, errLen+instrumentLen)
	if _, err := io.ReadFull(r, varBuf); err != nil {
		return OrderAck{}, err
	}
	ack.Err = string(varBuf[:errLen])
	ack.Instrument = string(varBuf[errLen:])
	return ack, nil
}

func parseExecution(r io.Reader) (Execution, error) {
	fixed := make([]byte, executionFixedLen-1)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return Execution{}, err
	}
	exec := Execution{
		OrderID:  binary.BigEndian.Uint64(fixed[0:8]),
		Price:    int64(binary.BigEndian.Uint64(fixed[8:16])),
		Quantity: binary.BigEndian.Uint32(fixed[16:20]),
	}
	instrument := make([]byte, int(fixed[20]))
	if _, err := io.ReadFull(r, instrument); err != nil {
		return Execution{}, err
	}
	exec.Instrument = string(instrument)
	return exec, nil
}

func parseBestPrice(r io.Reader) (BestPrice, error) {
	fixed := make([]byte, bestPriceFixedLen-1)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return BestPrice{}, err
	}
	bp := BestPrice{}
	flags := fixed[0]
	if flags&bidPresentFlag != 0 {
		bp.Bid = &common.Quote{
			Price:    int64(binary.BigEndian.Uint64(fixed[1:9])),
			Quantity: binary.BigEndian.Uint64(fixed[9:17]),
		}
	}
	if flags&askPresentFlag != 0 {
		bp.Ask = &common.Quote{
			Price:    int64(binary.BigEndian.Uint64(fixed[17:25])),
			Quantity: binary.BigEndian.Uint64(fixed[25:33]),
		}
	}
	instrument := make([]byte, int(fixed[33]))
	if _, err := io.ReadFull(r, instrument); err != nil {
		return BestPrice{}, err
	}
	bp.Instrument = string(instrument)
	return bp, nil
}

func parseErrorNotice(r io.Reader) (ErrorNotice, error) {
	fixed := make([]byte, errorNoticeFixedLen-1)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return ErrorNotice{}, err
	}
	msg := make([]byte, int(binary.BigEndian.Uint16(fixed[0:2])))
	if _, err := io.ReadFull(r, msg); err != nil {
		return ErrorNotice{}, err
	}
	return ErrorNotice{Err: string(msg)}, nil
}
