package arrow_client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ErrNotConnected is returned by uploads attempted before Connect.
var ErrNotConnected = errors.New("client not connected, call Connect() first")

// DescriptorPath names the Flight stream error records are put to.
var DescriptorPath = []string{"testfloat", "errors"}

// Uploader ships error record batches to a remote store.
type Uploader interface {
	Connect(ctx context.Context) error
	Upload(ctx context.Context, rec arrow.Record) error
	Close() error
}

// FlightClient uploads error records to an Arrow Flight server with DoPut.
type FlightClient struct {
	client  flight.Client
	addr    string
	timeout time.Duration
}

// NewFlightClient creates a client for the server at addr (host:port).
// No connection is made until Connect.
func NewFlightClient(addr string) (*FlightClient, error) {
	if addr == "" {
		return nil, fmt.Errorf("flight address is empty")
	}
	return &FlightClient{
		addr:    addr,
		timeout: 30 * time.Second,
	}, nil
}

// Connect establishes the gRPC channel
func (fc *FlightClient) Connect(ctx context.Context) error {
	client, err := flight.NewClientWithMiddlewareCtx(ctx, fc.addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to create Flight client: %w", err)
	}
	fc.client = client
	return nil
}

// Close disconnects from the Flight server
func (fc *FlightClient) Close() error {
	if fc.client != nil {
		err := fc.client.Close()
		fc.client = nil
		return err
	}
	return nil
}

// Upload streams one record batch to DescriptorPath and waits for the
// server to acknowledge it.
func (fc *FlightClient) Upload(ctx context.Context, rec arrow.Record) error {
	if fc.client == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, fc.timeout)
	defer cancel()

	stream, err := fc.client.DoPut(ctx)
	if err != nil {
		return fmt.Errorf("failed to open DoPut stream: %w", err)
	}

	w := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()))
	w.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: DescriptorPath,
	})
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	// Drain acknowledgements until the server ends the stream.
	for {
		if _, err := stream.Recv(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("upload not acknowledged: %w", err)
		}
	}
}
