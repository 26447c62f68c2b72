// Command zbspac packs and unpacks NeXaS PAC archives and extracts or
// reinjects the translatable text of a NeXaS compiled script.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/uyjulian/zbspac/pac"
	"github.com/uyjulian/zbspac/script"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "zbspac:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr *os.File) error {
	parsed, err := parseArgs(args)
	if err != nil {
		printUsage(stderr)
		return err
	}

	log := newLogger(stdout, parsed.level)

	switch parsed.op {
	case opHelp:
		printUsage(stdout)
		return nil
	case opAbout:
		printAbout(stdout)
		return nil
	case opPack:
		return doPack(parsed, log, pac.VariantMaybeDeflate)
	case opPackBFE:
		return doPack(parsed, log, pac.VariantLZSS)
	case opUnpack:
		return doUnpack(parsed, log)
	case opPackScript:
		return doPackScript(parsed, log)
	case opUnpackScript:
		return doUnpackScript(parsed, log)
	}
	return errUsage("unreachable operation " + parsed.op)
}

func printUsage(w *os.File) {
	fmt.Fprintln(w, `usage: zbspac [quietly|verbosely] <operation> <input> [output]

operations:
  pack <dir> [archive.pac]             pack a directory into a variant-4 archive
  pack-bfe <dir> [archive.pac]         pack a directory into a plain-index LZSS archive
  unpack <archive.pac> [dir]           unpack an archive into a directory
  unpack-script <script.bin> [base]    extract a compiled script's text to base.head.bin, base.txt, base.tail.bin
  pack-script <base> [script.bin]      reinject base.txt into base.head.bin/base.tail.bin, producing a compiled script
  help                                 show this message
  about                                show a short description of this tool`)
}

func printAbout(w *os.File) {
	fmt.Fprintln(w, "zbspac - a reversible codec and container toolkit for NeXaS visual novel resources")
}

func doPack(p parsedArgs, log *logger, variant pac.Variant) error {
	entries, err := readDirEntries(p.input)
	if err != nil {
		return err
	}

	var archive []byte
	if variant == pac.VariantMaybeDeflate {
		archive, err = pac.Pack(entries)
	} else {
		archive, err = pac.PackPlain(entries, variant)
	}
	if err != nil {
		return err
	}

	out := p.output
	if !p.haveOutput {
		out = strings.TrimSuffix(p.input, string(filepath.Separator)) + ".pac"
	}
	log.Infof("packing %d entries from %s into %s", len(entries), p.input, out)
	if err := os.WriteFile(out, archive, 0o644); err != nil {
		return err
	}
	log.Debugf("wrote %d bytes", len(archive))
	return nil
}

func readDirEntries(dir string) ([]pac.Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		names = append(names, de.Name())
	}
	sort.Strings(names)

	entries := make([]pac.Entry, len(names))
	for i, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		entries[i] = pac.Entry{Name: name, Data: data}
	}
	return entries, nil
}

// defaultUnpackOutput derives unpack's default target directory: the input
// path with its last extension removed, or with "_" appended if the input
// has no extension (so the output never collides with the input path).
func defaultUnpackOutput(input string) string {
	ext := filepath.Ext(input)
	if ext == "" {
		return input + "_"
	}
	return strings.TrimSuffix(input, ext)
}

func doUnpack(p parsedArgs, log *logger) error {
	data, err := os.ReadFile(p.input)
	if err != nil {
		return err
	}
	entries, err := pac.Unpack(data)
	if err != nil {
		return err
	}

	out := p.output
	if !p.haveOutput {
		out = defaultUnpackOutput(p.input)
	}
	log.Infof("unpacking %d entries from %s into %s", len(entries), p.input, out)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.WriteFile(filepath.Join(out, e.Name), e.Data, 0o644); err != nil {
			return err
		}
		log.Debugf("wrote %s (%d bytes)", e.Name, len(e.Data))
	}
	return nil
}

func doUnpackScript(p parsedArgs, log *logger) error {
	data, err := os.ReadFile(p.input)
	if err != nil {
		return err
	}
	head, segments, tail, err := script.Split(data)
	if err != nil {
		return err
	}

	base := p.output
	if !p.haveOutput {
		base = strings.TrimSuffix(p.input, filepath.Ext(p.input))
	}
	log.Infof("extracting %d segments from %s", len(segments), p.input)

	transcript, err := script.WriteTranscript(segments)
	if err != nil {
		return err
	}
	if err := os.WriteFile(base+".head.bin", head, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(base+".txt", transcript, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(base+".tail.bin", tail, 0o644); err != nil {
		return err
	}
	log.Debugf("wrote %s.head.bin, %s.txt, %s.tail.bin", base, base, base)
	return nil
}

func doPackScript(p parsedArgs, log *logger) error {
	base := p.input
	head, err := os.ReadFile(base + ".head.bin")
	if err != nil {
		return err
	}
	transcript, err := os.ReadFile(base + ".txt")
	if err != nil {
		return err
	}
	tail, err := os.ReadFile(base + ".tail.bin")
	if err != nil {
		return err
	}

	segments, err := script.ReadTranscript(transcript)
	if err != nil {
		return err
	}
	compiled, err := script.Join(head, segments, tail)
	if err != nil {
		return err
	}

	out := p.output
	if !p.haveOutput {
		out = base + ".bin"
	}
	log.Infof("reinjecting %d segments into %s", len(segments), out)
	if err := os.WriteFile(out, compiled, 0o644); err != nil {
		return err
	}
	log.Debugf("wrote %d bytes", len(compiled))
	return nil
}
