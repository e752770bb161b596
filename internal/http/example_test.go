package http_test

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/askcatalog/internal/http"
	"github.com/fyrsmithlabs/askcatalog/internal/memory"
	"github.com/fyrsmithlabs/askcatalog/internal/pipeline"
)

type echoPipeline struct{}

func (echoPipeline) Answer(_ context.Context, query string, _ *memory.Conversation) (string, error) {
	return "You asked: " + query, nil
}

func (echoPipeline) Rebuild(context.Context) (*pipeline.State, error) {
	return nil, pipeline.ErrRebuildInProgress
}

// ExampleServer demonstrates how to create and start the HTTP server.
func ExampleServer() {
	logger := zap.NewNop()

	cfg := &httpserver.Config{
		Host: "localhost",
		Port: 0,
	}

	sessions := memory.NewSessions(5, 30*time.Minute, memory.NewMemStore(), nil)
	server, err := httpserver.NewServer(echoPipeline{}, sessions, logger, cfg)
	if err != nil {
		panic(err)
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	fmt.Println("Server started and stopped successfully")
	// Output: Server started and stopped successfully
}
