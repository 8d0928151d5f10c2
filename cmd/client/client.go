package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"skoll/internal/common"
	skollnet "skoll/internal/net"
)

func main() {
	// CLI parameter parsing.
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange server")
	action := flag.String("action", "place", "Action to perform: ['place', 'cancel', 'log']")

	// Order parameters.
	instrument := flag.String("instrument", "AAPL", "Instrument identifier")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	price := flag.Int64("price", 100, "Limit price in ticks")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")

	// Cancel parameters.
	orderID := flag.Uint64("order-id", 0, "Id of the order to cancel")

	flag.Parse()

	side, err := common.ParseSide(*sideStr)
	if err != nil {
		fmt.Printf("Error: invalid -side %q\n", *sideStr)
		flag.Usage()
		os.Exit(1)
	}

	// Connect to the server.
	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s\n", *serverAddr)

	// Start listening for reports (async).
	go readReports(conn)

	switch strings.ToLower(*action) {
	case "place":
		for _, qty := range parseQuantities(*qtyStr) {
			err := send(conn, skollnet.NewOrderMessage{
				Side:       side,
				Price:      *price,
				Quantity:   qty,
				Instrument: *instrument,
			})
			if err != nil {
				log.Printf("Failed to place order (qty: %d): %v", qty, err)
				continue
			}
			fmt.Printf("-> Sent %s order: %s %d @ %d\n", side, *instrument, qty, *price)
			// Small sleep so the server processes the sequence distinctly.
			time.Sleep(5 * time.Millisecond)
		}

	case "cancel":
		err := send(conn, skollnet.CancelOrderMessage{
			Side:       side,
			OrderID:    *orderID,
			Instrument: *instrument,
		})
		if err != nil {
			log.Printf("Failed to send cancel request: %v", err)
		} else {
			fmt.Printf("-> Sent cancel request for %s order %d\n", side, *orderID)
		}

	case "log":
		err := send(conn, skollnet.LogBookMessage{Instrument: *instrument})
		if err != nil {
			log.Printf("Failed to send log request: %v", err)
		} else {
			fmt.Println("-> Sent log request")
		}

	default:
		log.Fatalf("Unknown action: %s", *action)
	}

	// Keep the client alive to receive reports.
	fmt.Println("\nListening for reports... (Press Ctrl+C to exit)")
	select {}
}

type serializable interface {
	Serialize() ([]byte, error)
}

func send(conn net.Conn, msg serializable) error {
	buf, err := msg.Serialize()
	if err != nil {
		return err
	}
	_, err = conn.Write(buf)
	return err
}

// parseQuantities splits a comma-separated string into a slice of uint32.
func parseQuantities(input string) []uint32 {
	parts := strings.Split(input, ",")
	var result []uint32
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseUint(p, 10, 32); err == nil {
			result = append(result, uint32(val))
		} else {
			log.Printf("Warning: invalid quantity '%s', skipping.", p)
		}
	}
	return result
}

// readReports continuously reads and prints report messages from the server.
func readReports(conn net.Conn) {
	for {
		report, err := skollnet.ParseReport(conn)
		if err != nil {
			if err != io.EOF {
				log.Printf("Connection lost: %v", err)
			}
			os.Exit(0)
		}

		switch r := report.(type) {
		case skollnet.OrderAck:
			if r.Err != "" {
				fmt.Printf("\n[REJECTED] %s %s: %s\n", r.Side, r.Instrument, r.Err)
			} else {
				fmt.Printf("\n[ACK] %s %s order id=%d\n", r.Side, r.Instrument, r.OrderID)
			}
		case skollnet.Execution:
			fmt.Printf("\n[EXECUTION] %s | order %d traded %d @ %d\n",
				r.Instrument, r.OrderID, r.Quantity, r.Price)
		case skollnet.BestPrice:
			fmt.Printf("\n[TOP OF BOOK] %s | bid %s | ask %s\n",
				r.Instrument, formatQuote(r.Bid), formatQuote(r.Ask))
		case skollnet.ErrorNotice:
			fmt.Printf("\n[SERVER ERROR] %s\n", r.Err)
		}
	}
}

func formatQuote(q *common.Quote) string {
	if q == nil {
		return "none"
	}
	return fmt.Sprintf("%d (qty %d)", q.Price, q.Quantity)
}
