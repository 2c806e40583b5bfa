package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/mnemo/internal/agent"
	"github.com/felixgeelhaar/mnemo/internal/clock"
	"github.com/felixgeelhaar/mnemo/internal/config"
	"github.com/felixgeelhaar/mnemo/internal/credential"
	"github.com/felixgeelhaar/mnemo/internal/guard"
	"github.com/felixgeelhaar/mnemo/internal/observe"
	"github.com/felixgeelhaar/mnemo/internal/provider"
	"github.com/felixgeelhaar/mnemo/internal/store"
)

// storedSettings are the configuration keys that override the config file.
var storedSettings = []string{"provider", "model", "embed_model", "base_url", "cli_path", "persona", "listen"}

// env bundles everything a command needs.
type env struct {
	obs   *observe.Observer
	store store.Storage
	keys  *credential.Keyring
	cfg   *config.Config
}

func defaultDataDir() string {
	if d := os.Getenv("MNEMO_HOME"); d != "" {
		return d
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mnemo")
}

func newObserver(out io.Writer) *observe.Observer {
	if jsonLogs {
		return observe.NewJSON(out, verbose)
	}
	return observe.New(out, verbose)
}

// openStore opens the shared Redis store when --redis is set and the local
// SQLite database otherwise.
func openStore() (store.Storage, *credential.Keyring, error) {
	var (
		st  store.Storage
		err error
	)
	if redisURL != "" {
		st, err = store.NewRedisStore(redisURL)
	} else {
		st, err = store.NewSQLiteStore(filepath.Join(dataDir, "mnemo.db"))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init store: %w", err)
	}
	sealer, err := credential.NewSealer()
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, credential.NewKeyring(st, sealer), nil
}

// openEnv loads configuration with the precedence flags > store > file >
// defaults, and validates the result.
func openEnv(obs *observe.Observer) (*env, error) {
	cfg := config.Default()
	path := configPath
	if path == "" {
		if p := filepath.Join(dataDir, "config.yaml"); fileExists(p) {
			path = p
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	st, keys, err := openStore()
	if err != nil {
		return nil, err
	}
	if err := applyStored(cfg, st); err != nil {
		st.Close()
		return nil, err
	}
	if providerName != "" {
		cfg.Provider = providerName
	}
	if modelName != "" {
		cfg.Model = modelName
	}

	res := cfg.Validate()
	for _, w := range res.Warnings {
		obs.Log().Warn().Str("warning", w).Msg("config")
	}
	if !res.Valid {
		st.Close()
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(res.Errors, "; "))
	}

	return &env{obs: obs, store: st, keys: keys, cfg: cfg}, nil
}

func applyStored(cfg *config.Config, st store.Storage) error {
	for _, key := range storedSettings {
		v, err := st.GetConfig(key)
		if err != nil {
			return err
		}
		if v == "" {
			continue
		}
		switch key {
		case "provider":
			cfg.Provider = v
		case "model":
			cfg.Model = v
		case "embed_model":
			cfg.EmbedModel = v
		case "base_url":
			cfg.BaseURL = v
		case "cli_path":
			cfg.CLIPath = v
		case "persona":
			cfg.Persona = v
		case "listen":
			cfg.Listen = v
		}
	}
	return nil
}

func (e *env) close() {
	e.store.Close()
	e.obs.Close()
}

func (e *env) model() (*provider.Client, error) {
	key, err := e.keys.Resolve(strings.ToLower(e.cfg.Provider))
	if err != nil {
		return nil, err
	}
	if provider.NeedsKey(e.cfg.Provider) && key == "" {
		return nil, fmt.Errorf("no API key for %s: run `mnemo config set %s <key>`",
			e.cfg.Provider, credential.StoreKey(e.cfg.Provider))
	}
	p, err := provider.New(e.cfg.ProviderSettings(key))
	if err != nil {
		return nil, err
	}
	e.obs.Log().Info().Str("provider", p.Name()).Msg("provider ready")
	return provider.NewClient(p, e.cfg.RetryConfig(), e.obs.Log()), nil
}

func (e *env) registry(m agent.Model) *agent.Registry {
	cfg := agent.DefaultConfig()
	if e.cfg.Persona != "" {
		cfg.Persona = e.cfg.Persona
	}
	cfg.Retrieval = e.cfg.RetrievalOptions()
	cfg.MaxTurns = e.cfg.Dialogue.MaxTurns
	cfg.SummarizeBatch = e.cfg.Dialogue.SummarizeBatch

	return agent.NewRegistry(agent.Deps{
		Model:    m,
		Guard:    guard.New(e.cfg.GuardPolicy()),
		Observer: e.obs,
		Clock:    clock.NewSystem(),
	}, cfg)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
