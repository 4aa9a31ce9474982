// Package server implements the line-oriented TCP protocol:
//
//	INGEST <json object | json array>   -> OK <record> | OK {"ingested":N}
//	QUERY <json params>                 -> OK <result>
//	DUMP                                -> OK <json array>
//	PING                                -> PONG
//	QUIT                                closes the connection
//
// Failures are answered with "ERR <message>".
package server

import (
	"bufio"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/raj2399/Task-Evallo/internal/logs"
	"github.com/raj2399/Task-Evallo/internal/metrics"
	"github.com/raj2399/Task-Evallo/internal/query"
	"github.com/valyala/fastjson"
)

const (
	transport = "tcp"

	maxConnections = 100
	maxLineBytes   = 4 << 20

	// readTimeout bounds the wait for the next command; writeTimeout bounds each reply.
	readTimeout  = 30 * time.Second
	writeTimeout = 10 * time.Second
)

type Router struct {
	logs   *logs.Service
	cert   *tls.Certificate
	logger *slog.Logger
	parser fastjson.ParserPool

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

func NewRouter(svc *logs.Service, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logs: svc, logger: logger.With("component", "tcp")}
}

// SetCertificate sets the TLS certificate for the router
func (r *Router) SetCertificate(cert tls.Certificate) {
	r.cert = &cert
}

// Addr returns the bound address, or nil before Listen has bound.
func (r *Router) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Listen starts the TCP server and blocks until Stop is called or accepting fails.
func (r *Router) Listen(addr string) error {
	var listener net.Listener
	var err error

	if r.cert != nil {
		config := &tls.Config{Certificates: []tls.Certificate{*r.cert}, MinVersion: tls.VersionTLS12}
		listener, err = tls.Listen("tcp", addr, config)
	} else {
		listener, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		listener.Close()
		return net.ErrClosed
	}
	r.listener = listener
	r.mu.Unlock()
	defer listener.Close()

	semaphore := make(chan struct{}, maxConnections)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			r.logger.Warn("accept failed", "error", err)
			continue
		}

		go func(c net.Conn) {
			semaphore <- struct{}{}
			defer func() {
				<-semaphore
				c.Close()
			}()
			r.HandleConnection(c)
		}(conn)
	}
}

// Stop closes the listener. Open connections finish their current command.
func (r *Router) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.listener == nil {
		return nil
	}
	return r.listener.Close()
}

// HandleConnection serves commands from conn until QUIT, EOF or a read timeout.
// Every reply gets a fresh write deadline, however long the connection has been open.
func (r *Router) HandleConnection(conn net.Conn) {
	reader := bufio.NewReaderSize(conn, 64<<10)
	w := replyWriter{conn}

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		line, err := readLine(reader)
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				fmt.Fprintln(w, "ERR line too long")
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		command, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch strings.ToUpper(command) {
		case "INGEST":
			r.ingest(w, arg)
		case "QUERY":
			r.query(w, arg)
		case "DUMP":
			recs, err := r.logs.Dump()
			if err != nil {
				fmt.Fprintln(w, "ERR failed to retrieve logs")
				continue
			}
			writeOK(w, recs)
		case "PING":
			fmt.Fprintln(w, "PONG")
		case "QUIT":
			return
		default:
			fmt.Fprintln(w, "ERR unknown command", command)
		}
	}
}

func (r *Router) ingest(w io.Writer, arg string) {
	if arg == "" {
		fmt.Fprintln(w, "ERR missing payload")
		return
	}

	p := r.parser.Get()
	v, err := p.Parse(arg)
	if err != nil {
		r.parser.Put(p)
		metrics.IngestTotal.WithLabelValues(transport, metrics.ResultRejected).Inc()
		fmt.Fprintln(w, "ERR invalid log schema: payload is not valid JSON")
		return
	}

	// Handle batch (Array) or single (Object)
	if v.Type() != fastjson.TypeArray {
		r.parser.Put(p)
		rec, err := r.logs.Ingest([]byte(arg))
		metrics.IngestTotal.WithLabelValues(transport, logs.Outcome(err)).Inc()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeOK(w, rec)
		return
	}

	items, _ := v.Array()
	raws := make([][]byte, 0, len(items))
	for _, item := range items {
		raws = append(raws, item.MarshalTo(nil))
	}
	r.parser.Put(p)

	recs, err := r.logs.IngestBatch(raws)
	if err != nil {
		metrics.IngestTotal.WithLabelValues(transport, logs.Outcome(err)).Inc()
		writeErr(w, err)
		return
	}
	metrics.IngestTotal.WithLabelValues(transport, metrics.ResultOK).Add(float64(len(recs)))
	writeOK(w, map[string]int{"ingested": len(recs)})
}

func (r *Router) query(w io.Writer, arg string) {
	values := map[string]string{}
	if arg != "" {
		p := r.parser.Get()
		v, err := p.Parse(arg)
		if err != nil || v.Type() != fastjson.TypeObject {
			r.parser.Put(p)
			fmt.Fprintln(w, "ERR query parameters must be a JSON object")
			return
		}
		obj, _ := v.Object()
		obj.Visit(func(key []byte, val *fastjson.Value) {
			switch val.Type() {
			case fastjson.TypeString:
				values[string(key)] = string(val.GetStringBytes())
			case fastjson.TypeNull:
			default:
				// Numbers and the like are taken in their JSON spelling, e.g. "page": 2.
				values[string(key)] = val.String()
			}
		})
		r.parser.Put(p)
	}

	res, err := r.logs.Search(query.ParseMap(values))
	metrics.QueryTotal.WithLabelValues(transport, logs.Outcome(err)).Inc()
	if err != nil {
		fmt.Fprintln(w, "ERR failed to retrieve logs")
		return
	}
	writeOK(w, res)
}

func writeOK(w io.Writer, v any) {
	res, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintln(w, "ERR internal error")
		return
	}
	fmt.Fprintln(w, "OK", string(res))
}

func writeErr(w io.Writer, err error) {
	if logs.Outcome(err) == metrics.ResultRejected {
		fmt.Fprintln(w, "ERR", err)
		return
	}
	fmt.Fprintln(w, "ERR failed to persist log")
}

// replyWriter refreshes the write deadline before every write.
type replyWriter struct {
	conn net.Conn
}

func (w replyWriter) Write(p []byte) (int, error) {
	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.conn.Write(p)
}

var errLineTooLong = errors.New("line too long")

// readLine reads up to '\n' without letting one line grow past maxLineBytes.
func readLine(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return "", err
		}
		if sb.Len()+len(chunk) > maxLineBytes {
			return "", errLineTooLong
		}
		sb.Write(chunk)
		if !isPrefix {
			return sb.String(), nil
		}
	}
}
