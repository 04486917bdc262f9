package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"

	"github.com/docopt/docopt-go"
	"github.com/gorilla/websocket"

	"github.com/tandemdocs/tandem/session"
)

const TandemCtlVersion = "0.0.1"

const DefaultApiUrl = "http://localhost:8000"
const DefaultWsUrl = "ws://localhost:8000"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := fmt.Sprintf(
		`Tandem document control.

The default urls are:
    api_url: %s
    ws_url: %s

Usage:
    tandemctl create [--api_url=<api_url>]
    tandemctl get [--api_url=<api_url>] <doc_id>
    tandemctl watch [--ws_url=<ws_url>] [--name=<name>] <doc_id>
    tandemctl write [--ws_url=<ws_url>] [--name=<name>] <doc_id> <page>...
    tandemctl save [--ws_url=<ws_url>] [--name=<name>] [--summary=<summary>] <doc_id>

Options:
    -h --help                Show this screen.
    --version                Show version.
    --api_url=<api_url>
    --ws_url=<ws_url>
    --name=<name>            Display name [default: tandemctl].
    --summary=<summary>      Version summary.`,
		DefaultApiUrl,
		DefaultWsUrl,
	)

	opts, err := docopt.ParseArgs(usage, os.Args[1:], TandemCtlVersion)
	if err != nil {
		panic(err)
	}

	if create_, _ := opts.Bool("create"); create_ {
		create(opts)
	} else if get_, _ := opts.Bool("get"); get_ {
		get(opts)
	} else if watch_, _ := opts.Bool("watch"); watch_ {
		watch(opts)
	} else if write_, _ := opts.Bool("write"); write_ {
		write(opts)
	} else if save_, _ := opts.Bool("save"); save_ {
		save(opts)
	}
}

func apiUrl(opts docopt.Opts) string {
	if apiUrl, err := opts.String("--api_url"); err == nil {
		return apiUrl
	}
	return DefaultApiUrl
}

func create(opts docopt.Opts) {
	response, err := http.Post(fmt.Sprintf("%s/api/documents", apiUrl(opts)), "application/json", nil)
	if err != nil {
		Err.Fatalf("create error = %s", err)
	}
	defer response.Body.Close()
	printBody(response.Body)
}

func get(opts docopt.Opts) {
	docId, _ := opts.String("<doc_id>")
	response, err := http.Get(fmt.Sprintf("%s/api/documents/%s", apiUrl(opts), docId))
	if err != nil {
		Err.Fatalf("get error = %s", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		Err.Fatalf("get error = %s", response.Status)
	}
	printBody(response.Body)
}

func printBody(body io.Reader) {
	data, err := io.ReadAll(body)
	if err != nil {
		Err.Fatalf("read error = %s", err)
	}
	Out.Printf("%s", string(data))
}

func dial(opts docopt.Opts) *websocket.Conn {
	wsUrl := DefaultWsUrl
	if wsUrl_, err := opts.String("--ws_url"); err == nil {
		wsUrl = wsUrl_
	}
	docId, _ := opts.String("<doc_id>")
	name, _ := opts.String("--name")

	ws, _, err := websocket.DefaultDialer.Dial(
		fmt.Sprintf("%s/ws/%s?user_name=%s", wsUrl, docId, url.QueryEscape(name)),
		nil,
	)
	if err != nil {
		Err.Fatalf("dial error = %s", err)
	}
	return ws
}

// watch attaches to the document channel and prints every message
func watch(opts docopt.Opts) {
	ws := dial(opts)
	defer ws.Close()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			Err.Fatalf("read error = %s", err)
		}
		Out.Printf("%s", string(message))
	}
}

// write replaces the document pages and waits for the echoed roster so the
// server has processed the update before we close
func write(opts docopt.Opts) {
	ws := dial(opts)
	defer ws.Close()

	pages := pagesArg(opts)
	sendEvent(ws, map[string]any{
		"type":  session.MessageTypeContentUpdate,
		"pages": pages,
	})
	sendEvent(ws, map[string]any{
		"type":      session.MessageTypeTypingStatus,
		"is_typing": false,
	})
	waitForType(ws, session.MessageTypeUserList)
	Out.Printf("wrote %d page(s)", len(pages))
}

func save(opts docopt.Opts) {
	ws := dial(opts)
	defer ws.Close()

	event := map[string]any{
		"type": session.MessageTypeSaveVersion,
	}
	if summary, err := opts.String("--summary"); err == nil {
		event["summary"] = summary
	}
	sendEvent(ws, event)
	message := waitForType(ws, session.MessageTypeVersionCreated)
	Out.Printf("%s", string(message))
}

func pagesArg(opts docopt.Opts) []string {
	pages := []string{}
	if pages_, ok := opts["<page>"].([]string); ok {
		pages = pages_
	}
	return pages
}

func sendEvent(ws *websocket.Conn, event map[string]any) {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		Err.Fatalf("marshal error = %s", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, eventBytes); err != nil {
		Err.Fatalf("write error = %s", err)
	}
}

func waitForType(ws *websocket.Conn, messageType string) []byte {
	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			Err.Fatalf("read error = %s", err)
		}
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &envelope); err != nil {
			continue
		}
		if envelope.Type == messageType {
			return message
		}
	}
}
