package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nspcc-dev/neo-did/bridge"
	"github.com/nspcc-dev/neo-did/config"
	"github.com/nspcc-dev/neo-did/did"
	"github.com/nspcc-dev/neo-did/idcache"
	"github.com/nspcc-dev/neo-did/keystore"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// env is an opened application environment.
type env struct {
	cfg       config.Config
	log       *zap.Logger
	keys      *keystore.Keystore
	watchlist *bridge.Watchlist
	wallet    *fileWallet
	history   *bridge.History
	mgr       *did.Manager

	// password entered in the terminal, prompted once per environment
	password string
}

func loadConfig(c *cli.Context) (config.Config, error) {
	if path := c.GlobalString(configFlag); path != "" {
		return config.Load(path)
	}

	cfg := config.Default(c.GlobalString(rootFlag))

	return cfg, cfg.Validate()
}

// openEnv opens keystore and identity manager. If create is set, missing
// keystore is generated.
func openEnv(c *cli.Context, create bool) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	log, err := cfg.Logger()
	if err != nil {
		return nil, err
	}

	e := &env{
		cfg:       cfg,
		log:       log,
		watchlist: bridge.NewWatchlist(),
	}

	e.keys, err = e.openKeystore(c, create)
	if err != nil {
		return nil, err
	}

	attrs, err := cfg.Attributes()
	if err != nil {
		return nil, err
	}

	prm := did.Prm{
		Logger:            log,
		KeyAgent:          e.keys,
		Watcher:           e.watchlist,
		InitialAttributes: attrs,
	}

	if path := c.GlobalString(transactionsFlag); path != "" {
		e.wallet, err = loadWallet(path)
		if err != nil {
			return nil, err
		}

		e.history = bridge.NewHistory(e.wallet, log)
		prm.History = e.history
	}

	prm.Store, err = idcache.OpenStore(cfg.DB)
	if err != nil {
		return nil, err
	}

	e.mgr, err = did.NewManager(prm)
	if err != nil {
		_ = prm.Store.Close()
		return nil, fmt.Errorf("init identity manager: %w", err)
	}

	return e, nil
}

func (e *env) openKeystore(c *cli.Context, create bool) (*keystore.Keystore, error) {
	cfg := e.cfg
	prm := keystore.Prm{
		Logger: e.log,
		Scrypt: cfg.ScryptParams(),
	}

	ks, err := keystore.Open(cfg.Keystore, prm)
	if err == nil || !create || !errors.Is(err, os.ErrNotExist) {
		return ks, err
	}

	password, err := e.readPassword(c, "Enter new wallet password: ")
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(cfg.Root, 0o700)
	if err != nil {
		return nil, fmt.Errorf("create root directory: %w", err)
	}

	ks, err = keystore.Generate(password, prm)
	if err != nil {
		return nil, fmt.Errorf("generate keystore: %w", err)
	}

	err = ks.Save(cfg.Keystore)
	if err != nil {
		return nil, err
	}

	e.log.Info("new keystore generated", zap.String("file", cfg.Keystore))

	return ks, nil
}

func (e *env) close() {
	if err := e.mgr.Close(); err != nil {
		e.log.Error("failed to close identity manager", zap.Error(err))
	}

	_ = e.log.Sync()
}

// identity returns Identity of the identifier from the first command
// argument.
func (e *env) identity(c *cli.Context) (*did.Identity, error) {
	id := c.Args().First()
	if id == "" {
		return nil, errors.New("missing identifier")
	}

	x := e.mgr.GetDID(id)
	if x == nil {
		return nil, fmt.Errorf("unknown identifier %s", id)
	}

	return x, nil
}

// readPassword returns password from the flag or prompts it from the
// terminal once per environment.
func (e *env) readPassword(c *cli.Context, prompt string) (string, error) {
	if p := c.GlobalString(passwordFlag); p != "" {
		return p, nil
	}

	if e.password != "" {
		return e.password, nil
	}

	fmt.Fprint(os.Stderr, prompt)

	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	e.password = string(b)

	return e.password, nil
}
