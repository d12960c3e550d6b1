package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/born-ml/criterion/internal/classes"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

func runClasses(args []string, stdin io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("classes", flag.ContinueOnError)
	numClasses := fs.Int("n", 10, "Number of word classes.")
	encoding := fs.String("encoding", "words", "Tokenizer: \"words\" for whitespace words, or a tiktoken encoding such as \"cl100k_base\".")
	top := fs.Int("top", 5, "Most frequent words shown per class.")
	if err := fs.Parse(args); err != nil {
		return err
	}

	text, err := readInputs(fs.Args(), stdin)
	if err != nil {
		return err
	}

	var (
		enc      classes.Encoder
		describe func(token int) string
	)
	if *encoding == "words" {
		words := classes.NewWords()
		enc, describe = words, func(token int) string { return strconv.Quote(words.Word(token)) }
	} else {
		tok, err := classes.NewTikToken(*encoding)
		if err != nil {
			return err
		}
		enc, describe = tok, func(token int) string { return "#" + strconv.Itoa(token) }
	}

	tokens := enc.Encode(text)
	p, err := classes.Build(classes.Count(tokens), *numClasses)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s tokens, %s distinct, %d classes\n\n",
		humanize.Comma(int64(len(tokens))), humanize.Comma(int64(p.VocabSize())), p.NumClasses())
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLASS\tWORD IDS\tMASS\tTOP WORDS")
	unigram := p.Unigram()
	for c := 0; c < p.NumClasses(); c++ {
		first, end := p.Range(c)
		var mass float64
		for id := first; id < end; id++ {
			mass += unigram[id]
		}
		var shown []string
		for id := first; id < min(end, first+*top); id++ {
			shown = append(shown, describe(p.Token(id)))
		}
		if end-first > *top {
			shown = append(shown, "...")
		}
		fmt.Fprintf(w, "%d\t[%d, %d)\t%.1f%%\t%s\n", c, first, end, 100*mass, strings.Join(shown, " "))
	}
	return w.Flush()
}

// readInputs concatenates the named files, or reads stdin when there are none.
func readInputs(paths []string, stdin io.Reader) (string, error) {
	if len(paths) == 0 {
		data, err := io.ReadAll(stdin)
		return string(data), errors.Wrap(err, "read stdin")
	}
	var sb strings.Builder
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", errors.Wrapf(err, "read %s", path)
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
