package rawsock

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey-austin/tv_animator/internal/bus"
	"github.com/mikey-austin/tv_animator/internal/core"
	"github.com/mikey-austin/tv_animator/internal/registry"
	"github.com/mikey-austin/tv_animator/internal/state"
	"github.com/mikey-austin/tv_animator/pkg/tva"
)

// maxLineBytes bounds one request line on the legacy socket.
const maxLineBytes = 64 * 1024

// Module serves the legacy line-delimited JSON trigger socket.
type Module struct {
	log      *zap.Logger
	listen   string
	service  *core.Service
	registry *registry.Registry
}

// NewModule creates the raw socket module.
func NewModule(log *zap.Logger, listen string, service *core.Service, reg *registry.Registry) *Module {
	if log == nil {
		log = zap.NewNop()
	}
	return &Module{log: log, listen: listen, service: service, registry: reg}
}

// DeriveListen computes the legacy listen address from the HTTP listen
// address: same host, port plus one.
func DeriveListen(httpListen string) (string, error) {
	host, portStr, err := net.SplitHostPort(httpListen)
	if err != nil {
		return "", fmt.Errorf("derive legacy listen: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", fmt.Errorf("derive legacy listen: %w", err)
	}
	return net.JoinHostPort(host, strconv.Itoa(port+1)), nil
}

// Run accepts legacy connections until ctx is cancelled.
func (m *Module) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", m.listen)
	if err != nil {
		return err
	}
	m.log.Info("legacy socket listening", zap.String("addr", m.listen))

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go m.serve(ctx, conn)
	}
}

func (m *Module) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	id := m.registry.NewID()
	m.registry.RegisterLegacy(id)
	defer m.registry.UnregisterLegacy(id)
	m.log.Info("legacy client connected", zap.String("conn_id", id), zap.String("remote", conn.RemoteAddr().String()))

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply := m.handle(line)
		if err := encoder.Encode(reply); err != nil {
			m.log.Debug("legacy write failed", zap.String("conn_id", id), zap.Error(err))
			return
		}
	}
	m.log.Info("legacy client disconnected", zap.String("conn_id", id))
}

// handle processes one request line. Bad input yields an error reply and
// leaves the connection open.
func (m *Module) handle(line string) tva.RawReply {
	var req tva.RawRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return tva.RawError("invalid JSON")
	}

	switch req.Action {
	case tva.RawActionTrigger:
		if req.Animation == "" {
			return tva.RawError("animation required")
		}
		result, err := m.service.Trigger(req.Animation, bus.CauseSocket)
		if err != nil {
			var notFound *state.NotFoundError
			if errors.As(err, &notFound) {
				reply := tva.RawError(notFound.Error())
				reply.AvailableMedia = notFound.Available
				return reply
			}
			return tva.RawError(err.Error())
		}
		return tva.RawSuccess(result.Current, string(result.MediaType))

	case tva.RawActionGetStatus:
		status := m.service.Status()
		return tva.RawReply{
			Status:           "success",
			CurrentAnimation: status.Current,
			MediaType:        string(status.MediaType),
			AvailableMedia:   status.AllMedia,
			Connections:      status.Counts.Total,
		}

	default:
		return tva.RawError(fmt.Sprintf("unknown action '%s'", req.Action))
	}
}
