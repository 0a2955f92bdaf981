package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/hyphen"
	"github.com/wippyai/hyphen/descriptor"
	"github.com/wippyai/hyphen/emit"
	"github.com/wippyai/hyphen/internal/jsonvalue"
	"github.com/wippyai/hyphen/iobuf"
	"github.com/wippyai/hyphen/schema"
	"github.com/wippyai/hyphen/schemafile"
	"github.com/wippyai/hyphen/witschema"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))

type options struct {
	schemaFile string
	typeExpr   string
	in         string
	out        string
	describe   bool
	listing    bool
	wit        bool
	encode     bool
	decode     bool
	compact    bool
	lenient    bool
	hex        bool
	verbose    bool
}

func main() {
	var o options
	flag.StringVar(&o.schemaFile, "schema", "", "Path to YAML schema file")
	flag.StringVar(&o.typeExpr, "type", "", "Root type expression, e.g. Canvas or Box<i32>")
	flag.StringVar(&o.in, "in", "", "Input file (default stdin)")
	flag.StringVar(&o.out, "out", "", "Output file (default stdout)")
	flag.BoolVar(&o.describe, "describe", false, "Print the descriptor tree")
	flag.BoolVar(&o.listing, "listing", false, "Print routine listings")
	flag.BoolVar(&o.wit, "wit", false, "Print the WIT declaration")
	flag.BoolVar(&o.encode, "encode", false, "Encode a JSON value to the wire format")
	flag.BoolVar(&o.decode, "decode", false, "Decode the wire format to JSON")
	flag.BoolVar(&o.compact, "compact", false, "Name routine variables _ in listings")
	flag.BoolVar(&o.lenient, "lenient", false, "Lower unresolvable members to fatal placeholders")
	flag.BoolVar(&o.hex, "hex", false, "Read and write the wire format as hex")
	flag.BoolVar(&o.verbose, "v", false, "Debug logging to stderr")
	interactive := flag.Bool("i", false, "Interactive mode with TUI")
	flag.Parse()

	if o.schemaFile == "" || (!*interactive && o.typeExpr == "") {
		fmt.Fprintln(os.Stderr, "Usage: hyphen -schema <file.yaml> -type <expr> [-describe] [-listing] [-wit]")
		fmt.Fprintln(os.Stderr, "       hyphen -schema <file.yaml> -type <expr> -encode [-in value.json] [-out value.bin]")
		fmt.Fprintln(os.Stderr, "       hyphen -schema <file.yaml> -type <expr> -decode [-in value.bin]")
		fmt.Fprintln(os.Stderr, "       hyphen -schema <file.yaml> -i  (interactive mode)")
		os.Exit(1)
	}

	if o.verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			hyphen.SetLogger(logger)
			defer logger.Sync()
		}
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(o); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(o); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// compiled is one root type compiled against a schema file.
type compiled struct {
	desc    *descriptor.Descriptor
	routine *emit.Routine
}

func load(o options) (*hyphen.Session, error) {
	reg, err := schemafile.LoadFile(o.schemaFile)
	if err != nil {
		return nil, err
	}
	return hyphen.NewSession(
		hyphen.WithRegistry(reg),
		hyphen.WithCompactVariables(o.compact),
		hyphen.WithLenientScan(o.lenient),
	), nil
}

func compile(s *hyphen.Session, expr string) (*compiled, error) {
	ref, err := schema.ParseRef(expr)
	if err != nil {
		return nil, fmt.Errorf("parse type: %w", err)
	}
	d, err := s.Describe(ref, nil)
	if err != nil {
		return nil, err
	}
	r, err := s.Compile(ref, nil)
	if err != nil {
		return nil, err
	}
	return &compiled{desc: d, routine: r}, nil
}

func run(o options) error {
	s, err := load(o)
	if err != nil {
		return err
	}
	c, err := compile(s, o.typeExpr)
	if err != nil {
		return err
	}

	tty := term.IsTerminal(int(os.Stdout.Fd()))
	header := func(title string) {
		if tty {
			fmt.Println(headerStyle.Render(title))
		} else {
			fmt.Println("# " + title)
		}
	}

	switch {
	case o.encode:
		return runEncode(c, o, tty)
	case o.decode:
		return runDecode(c, o)
	}

	if !o.describe && !o.listing && !o.wit {
		o.describe = true
	}
	if o.describe {
		header("Descriptor")
		fmt.Print(descriptor.Describe(c.desc))
		fmt.Println()
	}
	if o.listing {
		header("Routines")
		for _, r := range s.Routines() {
			fmt.Println(r.Listing())
		}
	}
	if o.wit {
		header("WIT")
		typ, err := witschema.Map(c.desc)
		if err != nil {
			return err
		}
		fmt.Print(witschema.Render(typ))
	}

	st := s.Stats()
	if tty {
		fmt.Printf("%d descriptors, %d routines, scan cache %d/%d\n",
			st.Descriptors, st.Emit.Routines, st.Scan.Hits, st.Scan.Lookups)
	}
	return nil
}

func runEncode(c *compiled, o options, tty bool) error {
	data, err := readInput(o.in)
	if err != nil {
		return err
	}
	wire, err := encodeJSON(c, data)
	if err != nil {
		return err
	}
	// raw bytes are unreadable on a terminal
	if o.hex || (o.out == "" && tty) {
		wire = []byte(hex.EncodeToString(wire) + "\n")
	}
	return writeOutput(o.out, wire)
}

func runDecode(c *compiled, o options) error {
	data, err := readInput(o.in)
	if err != nil {
		return err
	}
	if o.hex {
		data, err = hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return fmt.Errorf("decode hex: %w", err)
		}
	}
	out, err := decodeJSON(c, data)
	if err != nil {
		return err
	}
	return writeOutput(o.out, append(out, '\n'))
}

func encodeJSON(c *compiled, data []byte) ([]byte, error) {
	v, err := jsonvalue.Decode(c.desc, data)
	if err != nil {
		return nil, err
	}
	size, err := c.routine.Measure(v)
	if err != nil {
		return nil, err
	}
	buf := iobuf.NewHeap(size)
	defer buf.Close()
	if err := c.routine.Encode(v, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeJSON(c *compiled, wire []byte) ([]byte, error) {
	buf := iobuf.Wrap(wire)
	defer buf.Close()
	v, err := c.routine.Decode(buf)
	if err != nil {
		return nil, err
	}
	if rest := len(wire) - buf.Position(); rest != 0 {
		return nil, fmt.Errorf("%d trailing bytes after value", rest)
	}
	out, err := jsonvalue.Encode(c.desc, v)
	if err != nil {
		return nil, err
	}
	return jsonvalue.Indent(out)
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
