package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/tiglabs/baudschema/analysis"
	"github.com/tiglabs/baudschema/config"
	"github.com/tiglabs/baudschema/registry"
	"github.com/tiglabs/baudschema/util/json"
)

// runCheck merges every <type>=<file> argument in order and prints the
// registered types, their fields and the search filter over all types.
func runCheck(w io.Writer, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("expected at least one <type>=<mapping file> argument")
	}
	reg, err := registry.New(cfg)
	if err != nil {
		return err
	}
	defer reg.Close()

	for _, arg := range args {
		i := strings.IndexByte(arg, '=')
		if i <= 0 || i == len(arg)-1 {
			return errors.Errorf("invalid argument [%s], expected <type>=<mapping file>", arg)
		}
		typeName, path := arg[:i], arg[i+1:]
		source, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "fail to read mapping file[%s]", path)
		}
		if _, err := reg.Merge(typeName, source, true, false); err != nil {
			return errors.Wrapf(err, "merge [%s] from [%s]", typeName, path)
		}
	}

	snap := reg.Snapshot()
	resolver := analysis.NewResolver(snap, cfg.AnalysisCfg)
	fmt.Fprintf(w, "index: %s (version %d)\n", cfg.IndexCfg.Name, snap.Version())
	for _, tm := range snap.DocMappers(false) {
		fmt.Fprintf(w, "type: %s\n", tm.Type())
		if tm.HasActiveParent() {
			fmt.Fprintf(w, "  parent: %s\n", tm.ParentType())
		}
		meta := tm.Mapping().Metadata()
		fmt.Fprintf(w, "  meta: _all=%v _size=%v _timestamp=%v _ttl=%v _index=%v routing-required=%v\n",
			meta.AllEnabled(), meta.SizeEnabled(), meta.TimestampEnabled(), meta.TTLEnabled(), meta.IndexEnabled(), meta.RoutingRequired())
		fmt.Fprintf(w, "  source: %s\n", tm.Source())
	}

	fmt.Fprintln(w, "fields:")
	for _, name := range snap.SimpleMatchToIndexNames("*") {
		if registry.IsMetadataField(name) {
			continue
		}
		ft := snap.SmartNameFieldType(name)
		if ft == nil {
			continue
		}
		if ft.Tokenized {
			if _, err := resolver.IndexAnalyzer(name); err != nil {
				return errors.Wrapf(err, "field [%s]", name)
			}
		}
		fmt.Fprintf(w, "  %s: %s types=%v\n", name, ft.Type, snap.FieldTypes().Types(name))
	}

	filter, err := json.Marshal(snap.SearchFilter())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "search filter: %s\n", filter)
	return nil
}
