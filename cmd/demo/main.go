// Command demo embeds the server library and wires up a handful of
// routes, mirroring the kind of host program spec.md's callback model
// is meant to support.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mxvdev/embedhttp"
)

func main() {
	cfg := embedhttp.Config{
		Endpoint:        ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		ReuseAddress:    true,
	}

	srv := embedhttp.New(cfg)
	srv.OnRequestReceived = route
	srv.OnUnhandledException = func(ctx *embedhttp.Context, err error) bool {
		fmt.Fprintf(os.Stderr, "unhandled: %v\n", err)
		return false
	}

	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "start: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("listening on %s\n", srv.Endpoint())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("shutting down...")
	if err := srv.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "stop: %v\n", err)
		os.Exit(1)
	}

	m := srv.Metrics()
	fmt.Printf("requests=%d errors=%d avg_latency=%s\n", m.RequestsTotal, m.ErrorsTotal, m.AverageLatency)
}

func route(ctx *embedhttp.Context) {
	path := ctx.Request.URL.Path

	switch {
	case path == "/home" && ctx.Request.Method == "GET":
		handleHome(ctx)
	case path == "/home" && ctx.Request.Method == "POST":
		handlePost(ctx)
	case strings.HasPrefix(path, "/static/"):
		serveStatic(ctx)
	case path == "/api/metrics":
		getMetrics(ctx)
	default:
		ctx.Response.StatusCode = 404
		ctx.Response.StatusDescription = "Not Found"
		ctx.Response.WriteString("not found\n")
	}
}

func handleHome(ctx *embedhttp.Context) {
	ctx.Response.WriteString("Welcome home!")
}

func handlePost(ctx *embedhttp.Context) {
	body := ctx.Request.Body()
	if body == nil {
		ctx.Response.WriteString("You sent: (no body)")
		return
	}
	buf := make([]byte, 4096)
	n, _ := body.Read(buf)
	ctx.Response.WriteString("You sent: " + string(buf[:n]))
}

func serveStatic(ctx *embedhttp.Context) {
	name := strings.TrimPrefix(ctx.Request.URL.Path, "/static/")
	content, err := os.ReadFile(filepath.Join("./public", filepath.Clean("/"+name)))
	if err != nil {
		ctx.Response.StatusCode = 404
		ctx.Response.StatusDescription = "Not Found"
		ctx.Response.WriteString("file not found")
		return
	}

	switch filepath.Ext(name) {
	case ".html":
		ctx.Response.ContentType = "text/html"
	case ".css":
		ctx.Response.ContentType = "text/css"
	case ".js":
		ctx.Response.ContentType = "application/javascript"
	default:
		ctx.Response.ContentType = "application/octet-stream"
	}
	ctx.Response.Write(content)
}

func getMetrics(ctx *embedhttp.Context) {
	ctx.Response.ContentType = "application/json"
	ctx.Response.WriteString(fmt.Sprintf(
		`{"requests":%d,"errors":%d}`,
		0, 0,
	))
}
