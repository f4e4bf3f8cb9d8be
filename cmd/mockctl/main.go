// Command mockctl inspects and edits the mock server's document directly on
// disk. Stop the server first: the file-backed stores are not shared.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/codegangsta/cli"

	"github.com/stevemurr/json-mock-server/store"
)

func main() {
	if err := NewApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewApp creates the mockctl application writing results to out.
func NewApp(out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "mockctl"
	app.Usage = "JSON Mock Server document toolkit"
	app.Version = "0.1.0"
	app.Writer = out
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "backend",
			Value:  "json",
			Usage:  "store backend (json, sqlite, sqlite-purego, bolt, buntdb)",
			EnvVar: "STORE_BACKEND",
		},
		cli.StringFlag{
			Name:   "data-dir",
			Value:  "./data",
			Usage:  "storage directory",
			EnvVar: "DATA_DIR",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "collections",
			Usage:  "List top-level keys",
			Action: withDB(listKeys),
		},
		{
			Name:      "get",
			Usage:     "Print a key, or one record of it",
			ArgsUsage: "<name> [id]",
			Action:    withDB(get),
		},
		{
			Name:      "set",
			Usage:     "Store a JSON value under a key",
			ArgsUsage: "<name> <json>",
			Action:    withDB(set),
		},
		{
			Name:      "clear",
			Usage:     "Remove every record of a collection",
			ArgsUsage: "<name>",
			Action:    withDB(clearCollection),
		},
		{
			Name:      "seed",
			Usage:     "Merge a JSON object file into the document",
			ArgsUsage: "<file>",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "overwrite", Usage: "replace keys that already exist"},
			},
			Action: withDB(seed),
		},
		{
			Name:   "dump",
			Usage:  "Print the whole document",
			Action: withDB(dump),
		},
	}
	return app
}

func withDB(fn func(c *cli.Context, db *store.DB) error) func(c *cli.Context) error {
	return func(c *cli.Context) error {
		backend, err := store.NewBackend(c.GlobalString("backend"), c.GlobalString("data-dir"))
		if err != nil {
			return err
		}
		db, err := store.Open(backend, store.Defaults())
		if err != nil {
			backend.Close()
			return err
		}
		defer db.Close()
		return fn(c, db)
	}
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func listKeys(c *cli.Context, db *store.DB) error {
	for _, name := range db.Names() {
		fmt.Fprintln(c.App.Writer, name)
	}
	return nil
}

// parseID reads an id argument: integers become integer ids, anything else
// is a string id.
func parseID(s string) store.ID {
	if id, err := store.ParseIntID(s); err == nil {
		return id
	}
	return store.StringID(s)
}

func get(c *cli.Context, db *store.DB) error {
	name := c.Args().Get(0)
	if name == "" {
		return fmt.Errorf("usage: get <name> [id]")
	}
	if c.NArg() < 2 {
		return printJSON(c.App.Writer, db.GetAll(name))
	}
	rec, err := db.GetByID(name, parseID(c.Args().Get(1)))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, rec)
}

func set(c *cli.Context, db *store.DB) error {
	name, raw := c.Args().Get(0), c.Args().Get(1)
	if name == "" || raw == "" {
		return fmt.Errorf("usage: set <name> <json>")
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return fmt.Errorf("invalid JSON: %v", err)
	}
	return db.SetRaw(name, v)
}

func clearCollection(c *cli.Context, db *store.DB) error {
	name := c.Args().Get(0)
	if name == "" {
		return fmt.Errorf("usage: clear <name>")
	}
	removed, err := db.Remove(name, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "removed %d record(s) from %s\n", len(removed), name)
	return nil
}

func seed(c *cli.Context, db *store.DB) error {
	path := c.Args().Get(0)
	if path == "" {
		return fmt.Errorf("usage: seed [--overwrite] <file>")
	}
	doc, err := store.ReadSeed(path)
	if err != nil {
		return err
	}
	if c.Bool("overwrite") {
		if err := db.SetRawMany(doc); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "wrote %d key(s)\n", len(doc))
		return nil
	}
	added, err := db.MergeMissing(doc)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "added %d key(s)\n", len(added))
	return nil
}

func dump(c *cli.Context, db *store.DB) error {
	return printJSON(c.App.Writer, db.Snapshot())
}
