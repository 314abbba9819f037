package platform

import (
	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/internal/config"
	"github.com/reviewflow/reviewflow/pkg/errors"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

// Factory resolves a platform client for a repository URL. Clients are
// built once from configuration; resolution walks them in config order
// and returns the first whose MatchesURL accepts the repository.
type Factory struct {
	clients []Client
}

// NewFactory constructs clients for every configured platform. A platform
// whose client cannot be constructed fails the whole factory; a half-wired
// factory would silently drop webhooks for that platform later.
func NewFactory(cfg config.GitConfig) (*Factory, error) {
	f := &Factory{}
	for _, pc := range cfg.Platforms {
		client, err := Create(pc.Type, &Options{
			Token:              pc.Token,
			BaseURL:            pc.URL,
			InsecureSkipVerify: pc.InsecureSkipVerify,
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigInvalid,
				"failed to build git platform client: "+pc.Type, err)
		}
		logger.Info("Registered git platform",
			zap.String("platform", client.Name()),
			zap.String("base_url", client.GetBaseURL()),
		)
		f.clients = append(f.clients, client)
	}
	return f, nil
}

// NewFactoryWithClients builds a factory from pre-built clients.
func NewFactoryWithClients(clients ...Client) *Factory {
	return &Factory{clients: clients}
}

// ClientFor returns the client responsible for the given repository URL.
func (f *Factory) ClientFor(repoURL string) (Client, error) {
	for _, c := range f.clients {
		if c.MatchesURL(repoURL) {
			return c, nil
		}
	}
	return nil, errors.New(errors.ErrCodeGitNotFound,
		"no git platform configured for repository: "+repoURL)
}

// ClientByName returns the client with the given platform name.
func (f *Factory) ClientByName(name string) (Client, error) {
	for _, c := range f.clients {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, errors.New(errors.ErrCodeGitNotFound,
		"no git platform configured with name: "+name)
}

// Clients returns all configured clients in config order.
func (f *Factory) Clients() []Client {
	return f.clients
}
