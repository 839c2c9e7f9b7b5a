package ingest

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resume-chat/internal/chunkstore"
)

const rawDataset = `ID,Resume_str,Resume_html,Category
16852973,"  HR ADMINISTRATOR
• Payroll","<div>ignored</div>",HR
22323967,"   ","<div></div>",HR
11847784,NETWORK ENGINEER,,INFORMATION-TECHNOLOGY
`

func TestReadRawAndPrepare(t *testing.T) {
	raw, err := ReadRaw(strings.NewReader(rawDataset))
	require.NoError(t, err)
	require.Len(t, raw, 3)

	assert.Equal(t, int64(16852973), raw[0].ID)
	assert.Equal(t, "HR", raw[0].Category)

	chunks := Prepare(raw, 2)
	require.Len(t, chunks, 3)

	assert.Equal(t, chunkstore.Chunk{ResumeID: 16852973, Category: "HR", ChunkIndex: 0, Text: "hr administrator"}, chunks[0])
	assert.Equal(t, chunkstore.Chunk{ResumeID: 16852973, Category: "HR", ChunkIndex: 1, Text: "- payroll"}, chunks[1])
	assert.Equal(t, int64(11847784), chunks[2].ResumeID)
	assert.Equal(t, 0, chunks[2].ChunkIndex)
}

func TestReadRawMissingColumn(t *testing.T) {
	_, err := ReadRaw(strings.NewReader("ID,Category\n1,HR\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Contains(t, err.Error(), "Resume_str")

	_, err = ReadRaw(strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

func TestReadRawRejectsBadIdentifier(t *testing.T) {
	_, err := ReadRaw(strings.NewReader("ID,Category,Resume_str\nabc,HR,text\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestChunksCSV(t *testing.T) {
	chunks := []chunkstore.Chunk{
		{ResumeID: 57667857, Category: "HR", ChunkIndex: 0, Text: "hr administrator, payroll"},
		{ResumeID: 57667857, Category: "HR", ChunkIndex: 1, Text: "skills: \"recruiting\""},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteChunks(&buf, chunks))
	assert.True(t, strings.HasPrefix(buf.String(), "resume_id,category,chunk_index,chunk_text\n"))

	got, err := ReadChunks(&buf)
	require.NoError(t, err)
	assert.Equal(t, chunks, got)
}

func TestPrepareSkipsBlankResumes(t *testing.T) {
	chunks := Prepare([]RawResume{
		{ID: 10001, Category: "HR", Text: "   \n\t"},
		{ID: 10002, Category: "HR", Text: "<p> • </p>"},
		{ID: 10003, Category: "HR", Text: "payroll specialist"},
	}, 300)

	require.Len(t, chunks, 1)
	assert.Equal(t, int64(10003), chunks[0].ResumeID)
	assert.Equal(t, "payroll specialist", chunks[0].Text)
}
