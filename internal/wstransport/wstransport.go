// Package wstransport is a reference Transport collaborator: it
// upgrades HTTP connections to WebSocket, decodes a small JSON message
// envelope into rtevent.Event values submitted to an engine, and
// delivers broadcast.Message bundles back to the browser as one JSON
// array frame terminated by a NUL byte, matching the bundling framing
// convention this core's JSON transport follows.
//
// The per-connection handling (upgrade, then one goroutine per
// connection reading frames until EOF) is adapted from
// Generativebots-ocx-backend-go-svc's internal/websocket/dag_streamer.go,
// generalized from that package's fixed DAGEvent payload to this
// package's engine-agnostic envelope. There is no hub of its own: each
// connection registers a Sink with the engine, whose Broadcaster does
// the fan-out.
package wstransport

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/polyeffects/ingen/pkg/atom"
	"github.com/polyeffects/ingen/pkg/broadcast"
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/path"
	"github.com/polyeffects/ingen/pkg/rtevent"
)

// parsePortType maps a wire port type name to its graph.PortType.
func parsePortType(s string) (graph.PortType, error) {
	switch s {
	case "audio":
		return graph.TypeAudio, nil
	case "control":
		return graph.TypeControl, nil
	case "cv":
		return graph.TypeCV, nil
	case "event":
		return graph.TypeEvent, nil
	case "atom":
		return graph.TypeAtom, nil
	default:
		return 0, errUnknownMessageType("port_type:" + s)
	}
}

// EngineSubmitter is the surface this transport needs from an engine:
// submit an event, and register/unregister a client sink.
type EngineSubmitter interface {
	Submit(ev rtevent.Event) bool
	RegisterClient(sink broadcast.Sink) string
	UnregisterClient(id string)
}

// wireMessage is the JSON envelope one client message decodes into.
// Exactly one of the pointer fields is populated, selected by Type.
type wireMessage struct {
	Type string `json:"type"`

	// connect / disconnect
	Tail string `json:"tail,omitempty"`
	Head string `json:"head,omitempty"`

	// create_graph / create_block / create_port / delete / get / mark
	Path   string `json:"path,omitempty"`
	Plugin string `json:"plugin,omitempty"`

	// create_port
	Direction string `json:"direction,omitempty"` // "in" | "out"
	PortType  string `json:"port_type,omitempty"` // "audio" | "control" | "cv" | "event" | "atom"
	Index     int    `json:"index,omitempty"`
	Polyphony int    `json:"polyphony,omitempty"`

	// set_port_value
	Port  string  `json:"port,omitempty"`
	Value float64 `json:"value,omitempty"`

	// move
	Dest string `json:"dest,omitempty"`

	// mark
	Bracket string `json:"bracket,omitempty"` // "begin" | "end"
}

// wireResponse is one outgoing broadcast.Message rendered for the wire.
type wireResponse struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject,omitempty"`
	Tail    string `json:"tail,omitempty"`
	Head    string `json:"head,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Server upgrades HTTP connections and relays engine broadcasts to the
// connected clients, implementing a register_client/unregister_client
// Transport collaborator over WebSocket.
type Server struct {
	log      zerolog.Logger
	engine   EngineSubmitter
	upgrader websocket.Upgrader
}

// NewServer builds a Server around engine. CheckOrigin is permissive,
// matching a reference/demo transport rather than a hardened one.
// Fan-out to registered clients happens inside the engine's Broadcaster
// (each connection registers its own Sink); this server only owns the
// per-connection upgrade and read loop, unlike dag_streamer's hub,
// which also mediates fan-out through its own broadcast channel.
func NewServer(engine EngineSubmitter, log zerolog.Logger) *Server {
	return &Server{
		log:    log.With().Str("component", "wstransport").Logger(),
		engine: engine,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// wsSink adapts one websocket.Conn to broadcast.Sink.
type wsSink struct {
	conn     *websocket.Conn
	clientID string
}

func (s *wsSink) Deliver(bundle []broadcast.Message) {
	out := make([]wireResponse, len(bundle))
	for i, m := range bundle {
		out[i] = wireResponse{
			Kind:    kindName(m.Kind),
			Subject: string(m.Subject),
			Tail:    string(m.Tail),
			Head:    string(m.Head),
			Text:    m.Text,
		}
	}
	body, err := json.Marshal(out)
	if err != nil {
		return
	}
	body = append(body, 0) // NUL-terminated bundle frame
	_ = s.conn.WriteMessage(websocket.TextMessage, body)
}

func kindName(k broadcast.MessageKind) string {
	switch k {
	case broadcast.MsgPut:
		return "put"
	case broadcast.MsgDelta:
		return "delta"
	case broadcast.MsgConnect:
		return "connect"
	case broadcast.MsgDisconnect:
		return "disconnect"
	case broadcast.MsgDel:
		return "del"
	case broadcast.MsgSetProperty:
		return "set_property"
	case broadcast.MsgError:
		return "error"
	default:
		return "error"
	}
}

// ServeHTTP upgrades the connection, registers it with the engine's
// Broadcaster, and reads client frames until the connection closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sink := &wsSink{conn: conn}
	sink.clientID = s.engine.RegisterClient(sink)
	defer func() {
		s.engine.UnregisterClient(sink.clientID)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn().Err(err).Msg("malformed client message")
			continue
		}
		ev, err := decode(sink.clientID, msg)
		if err != nil {
			s.log.Warn().Err(err).Str("type", msg.Type).Msg("unrecognized client message")
			continue
		}
		s.engine.Submit(ev)
	}
}

// decode translates one wireMessage into the concrete rtevent.Event it
// names. Unknown message types and malformed paths are rejected here,
// off the audio thread, before the event ever reaches Submit.
func decode(clientID string, msg wireMessage) (rtevent.Event, error) {
	base := rtevent.NewBase(clientID)
	switch msg.Type {
	case "connect":
		tail, err := path.Parse(msg.Tail)
		if err != nil {
			return nil, err
		}
		head, err := path.Parse(msg.Head)
		if err != nil {
			return nil, err
		}
		return &rtevent.Connect{Base: base, Tail: tail, Head: head}, nil

	case "disconnect":
		tail, err := path.Parse(msg.Tail)
		if err != nil {
			return nil, err
		}
		head, err := path.Parse(msg.Head)
		if err != nil {
			return nil, err
		}
		return &rtevent.Disconnect{Base: base, Tail: tail, Head: head}, nil

	case "set_port_value":
		p, err := path.Parse(msg.Port)
		if err != nil {
			return nil, err
		}
		return &rtevent.SetPortValue{Base: base, Port: p, Value: atom.Float32(float32(msg.Value))}, nil

	case "delete":
		p, err := path.Parse(msg.Path)
		if err != nil {
			return nil, err
		}
		return &rtevent.Delete{Base: base, Path: p}, nil

	case "get":
		p, err := path.Parse(msg.Path)
		if err != nil {
			return nil, err
		}
		return &rtevent.Get{Base: base, Path: p}, nil

	case "move":
		p, err := path.Parse(msg.Path)
		if err != nil {
			return nil, err
		}
		d, err := path.Parse(msg.Dest)
		if err != nil {
			return nil, err
		}
		return &rtevent.Move{Base: base, From: p, To: d}, nil

	case "create_graph":
		p, err := path.Parse(msg.Path)
		if err != nil {
			return nil, err
		}
		return &rtevent.CreateGraph{Base: base, Path: p}, nil

	case "create_block":
		p, err := path.Parse(msg.Path)
		if err != nil {
			return nil, err
		}
		return &rtevent.CreateBlock{Base: base, Path: p, PluginURI: path.URI(msg.Plugin)}, nil

	case "create_port":
		p, err := path.Parse(msg.Path)
		if err != nil {
			return nil, err
		}
		dir := graph.DirIn
		if msg.Direction == "out" {
			dir = graph.DirOut
		}
		pt, err := parsePortType(msg.PortType)
		if err != nil {
			return nil, err
		}
		poly := msg.Polyphony
		if poly <= 0 {
			poly = 1
		}
		return &rtevent.CreatePort{
			Base: base, Path: p, Direction: dir, Type: pt,
			Index: msg.Index, Polyphony: poly,
		}, nil

	case "mark":
		kind := rtevent.MarkBundleStart
		if msg.Bracket == "end" {
			kind = rtevent.MarkBundleEnd
		}
		return &rtevent.Mark{Base: base, Kind: kind}, nil

	default:
		return nil, errUnknownMessageType(msg.Type)
	}
}

type errUnknownMessageType string

func (e errUnknownMessageType) Error() string { return "wstransport: unknown message type " + string(e) }
