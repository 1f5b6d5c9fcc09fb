package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/notekeeper/internal/client/models"
	"github.com/dmitrijs2005/notekeeper/internal/common"
)

const servicePrefix = "/notekeeper.v1.NoteService/"

const (
	methodCreateNote       = servicePrefix + "CreateNote"
	methodUpdateNote       = servicePrefix + "UpdateNote"
	methodDeleteNote       = servicePrefix + "DeleteNote"
	methodListNotes        = servicePrefix + "ListNotes"
	methodAddAttachment    = servicePrefix + "AddAttachment"
	methodDeleteAttachment = servicePrefix + "DeleteAttachment"
	methodPing             = servicePrefix + "Ping"
)

type createNoteRequest struct {
	OwnerID string            `json:"owner_id"`
	Fields  models.NoteFields `json:"fields"`
}

type updateNoteRequest struct {
	ID     string            `json:"id"`
	Update models.NoteUpdate `json:"update"`
}

type idRequest struct {
	ID string `json:"id"`
}

type listNotesRequest struct {
	OwnerID string `json:"owner_id"`
}

type listNotesResponse struct {
	Notes []models.Note `json:"notes"`
}

type empty struct{}

type pingResponse struct {
	Status string `json:"status"`
}

// caller is the part of *grpc.ClientConn the client needs.
type caller interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

type GRPCClient struct {
	endpointURL string
	timeout     time.Duration

	conn   *grpc.ClientConn
	caller caller

	mu          sync.RWMutex
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if token := c.AccessToken(); token != "" {
		ctx = withAccessToken(ctx, token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient dials endpointURL lazily; the first call establishes the
// connection. timeout bounds every call.
func NewGRPCClient(endpointURL string, timeout time.Duration) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, timeout: timeout}

	conn, err := grpc.NewClient(endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("create grpc client for %s: %w", endpointURL, err)
	}
	c.conn = conn
	c.caller = conn
	return c, nil
}

func (c *GRPCClient) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *GRPCClient) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *GRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *GRPCClient) invoke(ctx context.Context, method string, req, reply any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return mapError(c.caller.Invoke(ctx, method, req, reply))
}

func (c *GRPCClient) CreateNote(ctx context.Context, ownerID string, f models.NoteFields) (models.Note, error) {
	var n models.Note
	if err := c.invoke(ctx, methodCreateNote, &createNoteRequest{OwnerID: ownerID, Fields: f}, &n); err != nil {
		return models.Note{}, err
	}
	return n, nil
}

func (c *GRPCClient) UpdateNote(ctx context.Context, id string, u models.NoteUpdate) (models.Note, error) {
	var n models.Note
	if err := c.invoke(ctx, methodUpdateNote, &updateNoteRequest{ID: id, Update: u}, &n); err != nil {
		return models.Note{}, err
	}
	return n, nil
}

func (c *GRPCClient) DeleteNote(ctx context.Context, id string) error {
	return c.invoke(ctx, methodDeleteNote, &idRequest{ID: id}, &empty{})
}

func (c *GRPCClient) ListNotes(ctx context.Context, ownerID string) ([]models.Note, error) {
	var resp listNotesResponse
	if err := c.invoke(ctx, methodListNotes, &listNotesRequest{OwnerID: ownerID}, &resp); err != nil {
		return nil, err
	}
	return resp.Notes, nil
}

func (c *GRPCClient) AddAttachment(ctx context.Context, a models.Attachment) (models.Attachment, error) {
	var out models.Attachment
	if err := c.invoke(ctx, methodAddAttachment, &a, &out); err != nil {
		return models.Attachment{}, err
	}
	return out, nil
}

func (c *GRPCClient) DeleteAttachment(ctx context.Context, id string) error {
	return c.invoke(ctx, methodDeleteAttachment, &idRequest{ID: id}, &empty{})
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	var resp pingResponse
	if err := c.invoke(ctx, methodPing, &empty{}, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
