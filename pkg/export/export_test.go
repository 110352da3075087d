package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "igarchive/pkg/errors"
	"igarchive/pkg/models"
)

func sampleRecords() []models.ContentRecord {
	local := "/media/post_1_abcdef12.jpg"
	at := time.Date(2024, 3, 2, 10, 30, 0, 0, time.UTC)
	return []models.ContentRecord{
		{ID: 1, Category: models.CategoryPost, MediaURL: "https://cdn.example/a.jpg", Description: `sunset, "golden"`, CapturedAt: at, LocalMediaPath: &local, Account: "brand"},
		{ID: 2, Category: models.CategoryReel, MediaURL: "https://cdn.example/b.mp4", Description: "line one\nline two", IsVideo: true, CapturedAt: at.Add(time.Minute), Account: "brand"},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	assert.Equal(t, ".csv", f.Extension())
	assert.Contains(t, f.ContentType(), "text/csv")

	_, err = ParseFormat("xml")
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeInput, errs.TypeOf(err))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleRecords()))

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)

	assert.Equal(t, "post", got[0]["category"])
	assert.Equal(t, "/media/post_1_abcdef12.jpg", got[0]["local_media_path"])
	assert.Nil(t, got[1]["local_media_path"])
	assert.Equal(t, true, got[1]["is_video"])
	for _, col := range Header {
		assert.Contains(t, got[0], col)
	}
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleRecords()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"1", "post", "https://cdn.example/a.jpg", `sunset, "golden"`, "2024-03-02T10:30:00Z", "false", "/media/post_1_abcdef12.jpg", "brand"}, rows[1])
	assert.Equal(t, "line one\nline two", rows[2][3])
	assert.Equal(t, "", rows[2][6])
	assert.Equal(t, "true", rows[2][5])
}

func TestWriteCSVHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "id,category,media_url,description,captured_at,is_video,local_media_path,account\n", buf.String())
}
