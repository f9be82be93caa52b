package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/nspcc-dev/neo-did/bridge"
	"github.com/nspcc-dev/neo-did/did"
	"github.com/nspcc-dev/neo-did/idcache"
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/urfave/cli"
)

func writeJSON(c *cli.Context, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result into JSON: %w", err)
	}

	_, err = fmt.Fprintln(c.App.Writer, string(b))
	return err
}

func createDID(c *cli.Context) error {
	e, err := openEnv(c, true)
	if err != nil {
		return err
	}
	defer e.close()

	password, err := e.readPassword(c, "Enter wallet password: ")
	if err != nil {
		return err
	}

	x, err := e.mgr.CreateDID(password)
	if err != nil {
		return err
	}

	err = e.keys.Save(e.cfg.Keystore)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(c.App.Writer, x.DIDName())
	return err
}

func listDIDs(c *cli.Context) error {
	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.close()

	for _, id := range e.mgr.GetDIDList() {
		if _, err = fmt.Fprintln(c.App.Writer, id); err != nil {
			return err
		}
	}

	return nil
}

func getValue(c *cli.Context) error {
	return withIdentity(c, func(_ *env, x *did.Identity) error {
		v, err := x.Value(c.Args().Get(1))
		if err != nil {
			return err
		}

		if v == nil {
			return errors.New("attribute not found")
		}

		return writeJSON(c, v)
	})
}

func getHistory(c *cli.Context) error {
	return withIdentity(c, func(_ *env, x *did.Identity) error {
		vs, err := x.History(c.Args().Get(1))
		if err != nil {
			return err
		}

		if vs == nil {
			vs = []idcache.Version{}
		}

		return writeJSON(c, vs)
	})
}

func listPaths(c *cli.Context) error {
	return withIdentity(c, func(_ *env, x *did.Identity) error {
		ps, err := x.Paths(uint32(c.Uint("start")), uint32(c.Uint("count")))
		if err != nil {
			return err
		}

		for i := range ps {
			if _, err = fmt.Fprintln(c.App.Writer, ps[i]); err != nil {
				return err
			}
		}

		return nil
	})
}

func setValue(c *cli.Context) error {
	return withIdentity(c, func(_ *env, x *did.Identity) error {
		value := c.Args().Get(2)
		if !json.Valid([]byte(value)) {
			return errors.New("value is not a valid JSON")
		}

		return x.SetValue(c.Args().Get(1), json.RawMessage(value))
	})
}

func unsetValue(c *cli.Context) error {
	return withIdentity(c, func(_ *env, x *did.Identity) error {
		height := idcache.UnconfirmedHeight
		if c.IsSet("height") {
			height = uint32(c.Uint("height"))
		}

		return x.DeleteValue(c.Args().Get(1), height)
	})
}

func signMessage(c *cli.Context) error {
	return withIdentity(c, func(e *env, x *did.Identity) error {
		msg := []byte(c.Args().Get(1))

		password, err := e.readPassword(c, "Enter wallet password: ")
		if err != nil {
			return err
		}

		if !c.Bool("program") {
			sig, err := x.Sign(msg, password)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(c.App.Writer, hex.EncodeToString(sig))
			return err
		}

		w, err := x.GenerateProgram(msg, password)
		if err != nil {
			return err
		}

		return writeJSON(c, w)
	})
}

func verifySignature(c *cli.Context) error {
	return withIdentity(c, func(_ *env, x *did.Identity) error {
		sig, err := hex.DecodeString(c.Args().Get(2))
		if err != nil {
			return fmt.Errorf("decode signature from hex: %w", err)
		}

		ok, err := x.CheckSign([]byte(c.Args().Get(1)), sig)
		if err != nil {
			return err
		}

		if !ok {
			return errors.New("signature is invalid")
		}

		_, err = fmt.Fprintln(c.App.Writer, "signature is valid")
		return err
	})
}

func applyEvent(c *cli.Context) error {
	status, err := did.ParseStatus(c.String("status"))
	if err != nil {
		return err
	}

	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.close()

	prm := bridge.Prm{
		Logger:    e.log,
		Handler:   e.mgr,
		Watchlist: e.watchlist,
		History:   e.history,
	}

	if e.wallet != nil {
		prm.Lookup = e.wallet
	}

	b, err := bridge.New(prm)
	if err != nil {
		return err
	}

	ev := bridge.Event{
		Status: status,
		Height: uint32(c.Uint("height")),
	}

	switch status {
	case did.StatusAdded:
		p := bridge.Payload{
			ID:       c.Args().Get(0),
			Path:     c.Args().Get(1),
			DataHash: c.String("data-hash"),
			Proof:    c.String("proof"),
			Sign:     c.String("sign"),
		}

		tx := &bridge.Transaction{
			Type:    bridge.TypeRegisterIdentification,
			Payload: p.Bytes(),
			Height:  ev.Height,
		}
		tx.Hash = hash.Sha256(tx.Payload)

		if !c.IsSet("height") {
			tx.Height = idcache.UnconfirmedHeight
		}

		ev.Tx = tx
	default:
		ev.Hash, err = util.Uint256DecodeStringLE(c.String("tx"))
		if err != nil {
			return fmt.Errorf("decode transaction hash: %w", err)
		}
	}

	return b.Handle(ev)
}

func destroyDID(c *cli.Context) error {
	return withIdentity(c, func(e *env, x *did.Identity) error {
		return e.mgr.DestroyDID(x.DIDName())
	})
}

func dumpCache(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("missing dump file")
	}

	return withCache(c, func(cache *idcache.Cache) error {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return fmt.Errorf("create dump file: %w", err)
		}

		err = cache.Export(f)
		if err != nil {
			_ = f.Close()
			return err
		}

		return f.Close()
	})
}

func restoreCache(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("missing dump file")
	}

	return withCache(c, func(cache *idcache.Cache) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open dump file: %w", err)
		}
		defer f.Close()

		return cache.Import(f)
	})
}

func withIdentity(c *cli.Context, f func(*env, *did.Identity) error) error {
	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.close()

	x, err := e.identity(c)
	if err != nil {
		return err
	}

	return f(e, x)
}

func withCache(c *cli.Context, f func(*idcache.Cache) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	cache, err := idcache.OpenStore(cfg.DB)
	if err != nil {
		return err
	}

	err = f(cache)
	if err != nil {
		_ = cache.Close()
		return err
	}

	return cache.Close()
}
