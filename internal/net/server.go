package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"skoll/internal/common"
	"skoll/internal/engine"
	"skoll/internal/utils"
)

const (
	MAX_RECV_SIZE      = 4 * 1024
	defaultNWorkers    = 10
	defaultIdleTimeout = 5 * time.Minute
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
	ErrClientDoesNotExist = errors.New("client does not exist")
)

// ClientSession contains relevant information pertaining to an individual
// connected TCP session.
type ClientSession struct {
	id   string
	conn net.Conn
}

// ClientMessage links a message to the client sending it.
type ClientMessage struct {
	clientAddress string
	message       Message
}

// Server is the TCP front end of the exchange. It feeds parsed client
// messages into the engine and, as the engine's Notifier, pushes execution
// and best-price reports back out to every connected session.
type Server struct {
	address            string
	port               int
	engine             *engine.Exchange
	pool               utils.WorkerPool
	cancel             context.CancelFunc
	clientSessions     map[string]ClientSession
	clientSessionsLock sync.Mutex
	clientMessages     chan ClientMessage
}

func New(address string, port int, workers uint, eng *engine.Exchange) *Server {
	if workers == 0 {
		workers = defaultNWorkers
	}
	return &Server{
		address:        address,
		port:           port,
		engine:         eng,
		pool:           utils.NewWorkerPool(workers),
		clientSessions: make(map[string]ClientSession),
		clientMessages: make(chan ClientMessage, 1),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	s.cancel()
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	// Setup a cancel on the context for future shutdown.
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	// Start a tcp listener.
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	// Unblock Accept once the context is done.
	t.Go(func() error {
		<-ctx.Done()
		return listener.Close()
	})

	// Start the worker pool.
	s.pool.Setup(t, s.handleConnection)

	// Start the session handler.
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", s.address).Int("port", s.port).Msg("server running")

	// Start accepting connections.
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Error().Err(err).Msg("error accepting client")
				continue
			}
		}

		session := s.addClientSession(conn)
		log.Info().
			Str("session", session.id).
			Str("address", conn.RemoteAddr().String()).
			Msg("new client added")

		// Pass over the connection to be read from.
		s.pool.AddTask(conn)
	}
}

// OrderTraded implements engine.Notifier. Every session sees every fill;
// the report carries the resting order's id and price.
func (s *Server) OrderTraded(instrument string, orderID uint64, tradedPrice int64, tradedQuantity uint32) {
	trade := common.Trade{
		Instrument: instrument,
		OrderID:    orderID,
		Price:      tradedPrice,
		Quantity:   tradedQuantity,
		Timestamp:  time.Now(),
	}
	log.Debug().Stringer("trade", trade).Msg("trade executed")
	s.broadcast(Execution{
		OrderID:    trade.OrderID,
		Price:      trade.Price,
		Quantity:   trade.Quantity,
		Instrument: trade.Instrument,
	}.Serialize())
}

// BestPriceChanged implements engine.Notifier.
func (s *Server) BestPriceChanged(instrument string, bid, ask *common.Quote) {
	s.broadcast(BestPrice{
		Bid:        bid,
		Ask:        ask,
		Instrument: instrument,
	}.Serialize())
}

// sessionHandler drains parsed client messages and applies them to the
// engine. All engine calls happen here, one at a time; trade and best-price
// reports fire in-line from inside each call.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case message := <-s.clientMessages:
			s.handleMessage(message)
		}
	}
}

func (s *Server) handleMessage(cm ClientMessage) {
	switch m := cm.message.(type) {
	case NewOrderMessage:
		ack := OrderAck{Side: m.Side, Instrument: m.Instrument}
		id, err := s.engine.AddOrder(m.Instrument, m.Side, m.Price, m.Quantity)
		if err != nil {
			ack.Err = err.Error()
		} else {
			ack.OrderID = id
		}
		s.sendReport(cm.clientAddress, ack.Serialize())

	case CancelOrderMessage:
		ack := OrderAck{Side: m.Side, OrderID: m.OrderID, Instrument: m.Instrument}
		if !s.engine.RemoveOrder(m.Instrument, m.Side, m.OrderID) {
			ack.Err = common.ErrOrderNotFound.Error()
		}
		s.sendReport(cm.clientAddress, ack.Serialize())

	case LogBookMessage:
		s.logBook(m.Instrument)

	case BaseMessage:
		// Heartbeats keep the session alive and need no reply.

	default:
		log.Warn().
			Int("message type", int(cm.message.GetType())).
			Msg("unhandled message")
	}
}

// logBook dumps both sides of an instrument's book, best level first.
func (s *Server) logBook(instrument string) {
	for _, side := range []common.Side{common.Buy, common.Sell} {
		for _, level := range s.engine.Levels(instrument, side) {
			log.Info().
				Str("instrument", instrument).
				Stringer("side", side).
				Int64("price", level.Price).
				Uint64("volume", level.Volume).
				Int("orders", len(level.Orders)).
				Msg("book level")
		}
	}
}

// sendReport writes a report to a single session, dropping the session if
// the write fails.
func (s *Server) sendReport(clientAddress string, report []byte) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	client, ok := s.clientSessions[clientAddress]
	if !ok {
		return
	}
	if _, err := client.conn.Write(report); err != nil {
		log.Error().Err(err).Str("session", client.id).Msg("unable to send report")
		delete(s.clientSessions, clientAddress)
	}
}

// broadcast writes a report to every connected session.
func (s *Server) broadcast(report []byte) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	for address, client := range s.clientSessions {
		if _, err := client.conn.Write(report); err != nil {
			log.Error().Err(err).Str("session", client.id).Msg("dropping session")
			delete(s.clientSessions, address)
		}
	}
}

// handleConnection is a short-lived worker method which reads the next
// message off the connection, parses it and passes it forward to
// sessionHandler. If the connection dies, the client session is cleaned up.
// Note, any error returned from here is fatal for the worker.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}
	address := conn.RemoteAddr().String()

	if err := conn.SetReadDeadline(time.Now().Add(defaultIdleTimeout)); err != nil {
		log.Error().Err(err).Str("address", address).Msg("failed setting deadline for connection")
		s.dropClientSession(address)
		return nil
	}

	buffer := make([]byte, MAX_RECV_SIZE)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			// The client has most likely gone away. Clean up the session.
			log.Info().Err(err).Str("address", address).Msg("closing connection")
			s.dropClientSession(address)
			return nil
		}

		message, err := ParseMessage(buffer[:n])
		if err != nil {
			log.Error().Err(err).Str("address", address).Msg("error parsing message")
			s.sendReport(address, ErrorNotice{Err: err.Error()}.Serialize())
		} else {
			s.clientMessages <- ClientMessage{
				message:       message,
				clientAddress: address,
			}
		}

		// Push the client connection back to handle the next message.
		s.pool.AddTask(conn)
	}
	return nil
}

// addClientSession is an atomic map add.
func (s *Server) addClientSession(conn net.Conn) ClientSession {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	session := ClientSession{
		id:   uuid.New().String(),
		conn: conn,
	}
	s.clientSessions[conn.RemoteAddr().String()] = session
	return session
}

// dropClientSession is an atomic map remove which also closes the
// connection.
func (s *Server) dropClientSession(address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	if client, ok := s.clientSessions[address]; ok {
		if err := client.conn.Close(); err != nil {
			log.Error().Err(err).Str("session", client.id).Msg("unable to close connection")
		}
		delete(s.clientSessions, address)
	}
}
