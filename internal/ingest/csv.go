package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/resume-chat/internal/chunkstore"
)

// RawResume is one row of the source dataset.
type RawResume struct {
	ID       int64  `mapstructure:"ID"`
	Category string `mapstructure:"Category"`
	Text     string `mapstructure:"Resume_str"`
}

type chunkRow struct {
	ResumeID   int64  `mapstructure:"resume_id"`
	Category   string `mapstructure:"category"`
	ChunkIndex int    `mapstructure:"chunk_index"`
	Text       string `mapstructure:"chunk_text"`
}

var (
	rawColumns   = []string{"ID", "Category", "Resume_str"}
	chunkColumns = []string{"resume_id", "category", "chunk_index", "chunk_text"}
)

var ErrMissingColumn = errors.New("missing column")

// ReadRaw reads the raw resume dataset.
func ReadRaw(r io.Reader) ([]RawResume, error) {
	var out []RawResume
	err := readRows(r, rawColumns, func(row map[string]string) error {
		var raw RawResume
		if err := mapstructure.WeakDecode(row, &raw); err != nil {
			return err
		}
		out = append(out, raw)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read raw resumes: %w", err)
	}
	return out, nil
}

// Prepare cleans and chunks every resume. Resumes that are empty after
// cleaning produce no chunks.
func Prepare(resumes []RawResume, maxWords int) []chunkstore.Chunk {
	var chunks []chunkstore.Chunk
	for _, r := range resumes {
		cleaned := Clean(r.Text)
		if cleaned == "" {
			continue
		}
		for i, text := range Chunk(cleaned, maxWords) {
			chunks = append(chunks, chunkstore.Chunk{
				ResumeID:   r.ID,
				Category:   strings.TrimSpace(r.Category),
				ChunkIndex: i,
				Text:       text,
			})
		}
	}
	return chunks
}

// WriteChunks writes chunks in the format ReadChunks accepts.
func WriteChunks(w io.Writer, chunks []chunkstore.Chunk) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(chunkColumns); err != nil {
		return fmt.Errorf("write chunk header: %w", err)
	}
	for _, c := range chunks {
		record := []string{
			strconv.FormatInt(c.ResumeID, 10),
			c.Category,
			strconv.Itoa(c.ChunkIndex),
			c.Text,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write chunk %d/%d: %w", c.ResumeID, c.ChunkIndex, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func ReadChunks(r io.Reader) ([]chunkstore.Chunk, error) {
	var out []chunkstore.Chunk
	err := readRows(r, chunkColumns, func(row map[string]string) error {
		var c chunkRow
		if err := mapstructure.WeakDecode(row, &c); err != nil {
			return err
		}
		out = append(out, chunkstore.Chunk{
			ResumeID:   c.ResumeID,
			Category:   c.Category,
			ChunkIndex: c.ChunkIndex,
			Text:       c.Text,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	return out, nil
}

// readRows maps every record to its header names and hands it to fn. Extra
// columns are ignored; a missing required column fails before any row is read.
func readRows(r io.Reader, required []string, fn func(map[string]string) error) error {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty input", ErrMissingColumn)
		}
		return err
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return fmt.Errorf("%w %q", ErrMissingColumn, name)
		}
	}

	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line++

		row := make(map[string]string, len(required))
		for _, name := range required {
			row[name] = strings.TrimSpace(record[index[name]])
		}
		if err := fn(row); err != nil {
			return fmt.Errorf("row %d: %w", line, err)
		}
	}
}
