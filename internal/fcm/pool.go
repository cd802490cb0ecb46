package fcm

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/benardelia/fcm-notification-server/internal/domain"
	"github.com/benardelia/fcm-notification-server/internal/store"
)

// Sender is the subset of *messaging.Client the dispatch engine uses.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
}

type CredentialSource interface {
	GetCredential(ctx context.Context, tenantID string) (store.TenantCredential, bool, error)
	GetDefaultCredential(ctx context.Context) (store.TenantCredential, bool, error)
}

const defaultKey = "default"

// ClientPool keeps one messaging client per tenant credential set. Clients are
// expensive to construct and live for the process lifetime.
type ClientPool struct {
	Creds CredentialSource

	// FallbackCredentialsFile is a service-account file used when no default
	// credential row exists. Optional.
	FallbackCredentialsFile string

	// NewClient builds a client from a service-account JSON blob.
	// Overridable in tests; defaults to the Firebase SDK.
	NewClient func(ctx context.Context, credentialsJSON []byte) (Sender, error)

	mu      sync.Mutex
	clients map[string]Sender
}

func NewClientPool(creds CredentialSource) *ClientPool {
	return &ClientPool{
		Creds:     creds,
		NewClient: newMessagingClient,
		clients:   make(map[string]Sender),
	}
}

// Get returns the cached client for the tenant, constructing it on first use.
// An empty tenantID selects the default credential.
func (p *ClientPool) Get(ctx context.Context, tenantID string) (Sender, error) {
	key := tenantID
	if key == "" {
		key = defaultKey
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[key]; ok {
		return c, nil
	}

	cred, err := p.lookupCredential(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	client, err := p.NewClient(ctx, normalizeCredentialJSON(cred.CredentialsJSON))
	if err != nil {
		return nil, &domain.ConfigurationError{Msg: "building messaging client for " + key, Err: err}
	}
	p.clients[key] = client
	slog.Info("messaging client created", "tenant", key)
	return client, nil
}

func (p *ClientPool) lookupCredential(ctx context.Context, tenantID string) (store.TenantCredential, error) {
	if tenantID == "" {
		cred, found, err := p.Creds.GetDefaultCredential(ctx)
		if err != nil {
			return store.TenantCredential{}, err
		}
		if !found {
			if p.FallbackCredentialsFile != "" {
				b, rerr := os.ReadFile(p.FallbackCredentialsFile)
				if rerr != nil {
					return store.TenantCredential{}, &domain.ConfigurationError{Msg: "reading fallback credentials", Err: rerr}
				}
				return store.TenantCredential{CredentialsJSON: b}, nil
			}
			return store.TenantCredential{}, &domain.ConfigurationError{Msg: "no default credential configured"}
		}
		return cred, nil
	}

	cred, found, err := p.Creds.GetCredential(ctx, tenantID)
	if err != nil {
		return store.TenantCredential{}, err
	}
	if !found {
		return store.TenantCredential{}, &domain.ConfigurationError{Msg: "no credential for tenant " + tenantID}
	}
	return cred, nil
}

// normalizeCredentialJSON unwraps blobs stored as a JSON-encoded string.
func normalizeCredentialJSON(b []byte) []byte {
	if len(b) > 0 && b[0] == '"' {
		var inner string
		if err := json.Unmarshal(b, &inner); err == nil {
			return []byte(inner)
		}
	}
	return b
}

func newMessagingClient(ctx context.Context, credentialsJSON []byte) (Sender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, err
	}
	return app.Messaging(ctx)
}
