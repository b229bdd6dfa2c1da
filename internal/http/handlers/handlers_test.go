package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/ffmpeg"
	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/playid"
	"github.com/vodarr/vodarr/internal/repository"
	"github.com/vodarr/vodarr/internal/transcode"
)

const testSecret = "handlers-test-secret"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type catalogFixture struct {
	catalog   *Catalog
	playID    string
	mediaPath string
}

// newCatalogFixture seeds one episode whose metadata points at a real 1000
// byte file, so range requests exercise the full read path.
func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Episode{}, &models.Movie{}))

	mediaPath := filepath.Join(t.TempDir(), "Alpha.House.S02E01.mkv")
	body := make([]byte, 1000)
	for i := range body {
		body[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(mediaPath, body, 0o644))

	meta := directPlayMeta(mediaPath)
	raw, err := json.Marshal(meta)
	require.NoError(t, err)

	episodes := repository.NewEpisodeRepository(db)
	movies := repository.NewMovieRepository(db)
	require.NoError(t, episodes.Upsert(context.Background(), &models.Episode{
		SeriesID:     1,
		Number:       2,
		Path:         mediaPath,
		Metadata:     raw,
		ModifiedTime: time.Now().UTC().Truncate(time.Second),
	}))

	playID, err := playid.Sign(testSecret, &playid.Claims{
		Type:     playid.TypeSeries,
		SeriesID: 1,
		Number:   2,
	})
	require.NoError(t, err)

	return &catalogFixture{
		catalog:   NewCatalog(testSecret, episodes, movies),
		playID:    playID,
		mediaPath: mediaPath,
	}
}

func directPlayMeta(path string) *ffmpeg.ProbeResult {
	return &ffmpeg.ProbeResult{
		Format: ffmpeg.ProbeFormat{
			Filename:   path,
			FormatName: "matroska,webm",
			Duration:   "1200.000000",
			BitRate:    "5000000",
		},
		Streams: []ffmpeg.ProbeStream{
			{
				Index: 0, CodecType: "video", CodecName: "h264",
				Profile: "High", Level: 41,
				Width: 1920, Height: 1080, PixFmt: "yuv420p",
				ColorTransfer: "bt709", ColorPrimaries: "bt709",
				Tags: map[string]string{"title": "Main"},
			},
			{
				Index: 1, CodecType: "audio", CodecName: "aac", Channels: 2,
				Disposition: ffmpeg.ProbeDisposition{Default: 1},
				Tags:        map[string]string{"language": "eng"},
			},
			{
				Index: 2, CodecType: "subtitle", CodecName: "subrip",
				Tags: map[string]string{"language": "eng"},
			},
			{
				Index: 3, CodecType: "subtitle", CodecName: "hdmv_pgs_subtitle",
				Tags: map[string]string{"language": "dan"},
			},
		},
		Keyframes: []float64{0, 6.715, 10.761},
	}
}

func directPlayQuery(playID string) url.Values {
	return url.Values{
		"play_id":                    {playID},
		"session":                    {"sess-1"},
		"format":                     {"hls"},
		"supported_video_codecs":     {"h264"},
		"supported_audio_codecs":     {"aac"},
		"supported_video_containers": {"matroska,mp4"},
	}
}

func TestCatalogResolvesSeriesSource(t *testing.T) {
	f := newCatalogFixture(t)

	meta, err := f.catalog.Source(context.Background(), f.playID, 0)
	require.NoError(t, err)
	assert.Equal(t, f.mediaPath, meta.Format.Filename)
	assert.Equal(t, []float64{0, 6.715, 10.761}, meta.Keyframes)
}

func TestCatalogSourceIndexOutOfRange(t *testing.T) {
	f := newCatalogFixture(t)

	_, err := f.catalog.Source(context.Background(), f.playID, 5)
	assert.ErrorIs(t, err, transcode.ErrNoMetadata)
}

func TestCatalogUnknownMovie(t *testing.T) {
	f := newCatalogFixture(t)
	playID, err := playid.Sign(testSecret, &playid.Claims{
		Type:    playid.TypeMovie,
		MovieID: 99,
	})
	require.NoError(t, err)

	_, err = f.catalog.Source(context.Background(), playID, 0)
	assert.ErrorIs(t, err, transcode.ErrNoMetadata)
}

func TestCatalogRejectsForgedPlayID(t *testing.T) {
	f := newCatalogFixture(t)
	forged, err := playid.Sign("wrong-secret", &playid.Claims{
		Type:     playid.TypeSeries,
		SeriesID: 1,
		Number:   2,
	})
	require.NoError(t, err)

	_, err = f.catalog.Sources(context.Background(), forged)
	assert.ErrorIs(t, err, playid.ErrInvalidToken)
}

func newSourceServer(t *testing.T) (*catalogFixture, *chi.Mux) {
	f := newCatalogFixture(t)
	router := chi.NewRouter()
	NewSourceHandler(f.catalog, testLogger()).Routes(router)
	return f, router
}

func TestSourceFullDownload(t *testing.T) {
	f, router := newSourceServer(t)

	req := httptest.NewRequest(http.MethodGet, "/source?play_id="+url.QueryEscape(f.playID), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1000", rec.Header().Get("Content-Length"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "identity", rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Len(t, rec.Body.Bytes(), 1000)
}

func TestSourceHeadRequest(t *testing.T) {
	f, router := newSourceServer(t)

	req := httptest.NewRequest(http.MethodHead, "/source?play_id="+url.QueryEscape(f.playID), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1000", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Body.Bytes())
}

func TestSourceRangeRequests(t *testing.T) {
	f, router := newSourceServer(t)
	full := make([]byte, 1000)
	for i := range full {
		full[i] = byte(i % 251)
	}

	tests := []struct {
		name        string
		rangeHeader string
		wantStatus  int
		wantRange   string
		wantBody    []byte
	}{
		{
			name:        "first half",
			rangeHeader: "bytes=0-499",
			wantStatus:  http.StatusPartialContent,
			wantRange:   "bytes 0-499/1000",
			wantBody:    full[:500],
		},
		{
			name:        "suffix",
			rangeHeader: "bytes=-100",
			wantStatus:  http.StatusPartialContent,
			wantRange:   "bytes 900-999/1000",
			wantBody:    full[900:],
		},
		{
			name:        "open end",
			rangeHeader: "bytes=950-",
			wantStatus:  http.StatusPartialContent,
			wantRange:   "bytes 950-999/1000",
			wantBody:    full[950:],
		},
		{
			name:        "end beyond size",
			rangeHeader: "bytes=500-1500",
			wantStatus:  http.StatusRequestedRangeNotSatisfiable,
		},
		{
			name:        "inverted",
			rangeHeader: "bytes=600-400",
			wantStatus:  http.StatusRequestedRangeNotSatisfiable,
		},
		{
			name:        "garbage",
			rangeHeader: "bytes=abc-def",
			wantStatus:  http.StatusRequestedRangeNotSatisfiable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/source?play_id="+url.QueryEscape(f.playID), nil)
			req.Header.Set("Range", tt.rangeHeader)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusPartialContent {
				return
			}
			assert.Equal(t, tt.wantRange, rec.Header().Get("Content-Range"))
			assert.Equal(t, tt.wantBody, rec.Body.Bytes())
		})
	}
}

func TestSourceInvalidPlayID(t *testing.T) {
	_, router := newSourceServer(t)

	req := httptest.NewRequest(http.MethodGet, "/source?play_id=garbage", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseRange(t *testing.T) {
	start, end, err := parseRange("bytes=0-0", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), start)
	assert.Equal(t, int64(0), end)

	start, end, err = parseRange("bytes=-2000", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), start)
	assert.Equal(t, int64(999), end)

	_, _, err = parseRange("bytes=-0", 1000)
	assert.Error(t, err)

	_, _, err = parseRange("items=0-10", 1000)
	assert.Error(t, err)

	_, _, err = parseRange("bytes=1000-", 1000)
	assert.Error(t, err)
}

func TestSourcesList(t *testing.T) {
	f := newCatalogFixture(t)
	handler := NewSourcesHandler(f.catalog)

	out, err := handler.List(context.Background(), &SourcesInput{PlayID: f.playID})
	require.NoError(t, err)
	require.Len(t, out.Body, 1)

	source := out.Body[0]
	assert.Equal(t, 0, source.Index)
	assert.Equal(t, "1080p", source.Resolution)
	assert.Equal(t, "h264", source.Codec)
	assert.Equal(t, 8, source.VideoColorBitDepth)
	assert.Equal(t, "sdr", source.VideoColorRange)
	assert.InDelta(t, 1200.0, source.Duration, 0.001)

	require.Len(t, source.Audio, 1)
	assert.Equal(t, "eng", source.Audio[0].Language)
	assert.True(t, source.Audio[0].Default)

	// The bitmap subtitle track is filtered out.
	require.Len(t, source.Subtitles, 1)
	assert.Equal(t, "subrip", source.Subtitles[0].Codec)
}

func TestSourcesInvalidPlayID(t *testing.T) {
	f := newCatalogFixture(t)
	handler := NewSourcesHandler(f.catalog)

	_, err := handler.List(context.Background(), &SourcesInput{PlayID: "garbage"})
	require.Error(t, err)
	statusErr, ok := err.(huma.StatusError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, statusErr.GetStatus())
}

func TestResolutionText(t *testing.T) {
	assert.Equal(t, "1080p", ResolutionText(1920, 1080))
	assert.Equal(t, "720p", ResolutionText(1280, 720))
	assert.Equal(t, "4K", ResolutionText(3840, 2160))
	assert.Equal(t, "480p", ResolutionText(854, 480))
	assert.Equal(t, "9000x7000", ResolutionText(9000, 7000))
}

func newStreamServer(t *testing.T) (*catalogFixture, *chi.Mux) {
	f := newCatalogFixture(t)

	cfg := &config.Config{}
	cfg.Transcode.SessionTimeout = time.Minute
	cfg.FFmpeg.TonemapEnabled = true
	engine := transcode.NewEngine(cfg, ffmpeg.Binaries{}, testLogger())
	t.Cleanup(engine.Shutdown)

	router := chi.NewRouter()
	NewStreamHandler(f.catalog, engine, cfg.FFmpeg, testLogger()).Routes(router)
	return f, router
}

func TestRequestMediaDirectPlay(t *testing.T) {
	f, router := newStreamServer(t)

	q := directPlayQuery(f.playID)
	req := httptest.NewRequest(http.MethodGet, "/request-media?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp RequestMediaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.CanDirectPlay)
	assert.Contains(t, resp.DirectPlayURL, "/source?")

	// The HLS URL round-trips through the settings parser.
	hlsURL, err := url.Parse(resp.HLSURL)
	require.NoError(t, err)
	assert.Equal(t, "/hls/main.m3u8", hlsURL.Path)
	settings, err := transcode.ParseSettings(hlsURL.Query())
	require.NoError(t, err)
	assert.Equal(t, "sess-1", settings.Session)
}

func TestRequestMediaForceTranscode(t *testing.T) {
	f, router := newStreamServer(t)

	q := directPlayQuery(f.playID)
	q.Set("force_transcode", "true")
	req := httptest.NewRequest(http.MethodGet, "/request-media?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp RequestMediaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.CanDirectPlay)
}

func TestRequestMediaRejectsBadDescriptor(t *testing.T) {
	f, router := newStreamServer(t)

	q := directPlayQuery(f.playID)
	q.Set("format", "dash")
	req := httptest.NewRequest(http.MethodGet, "/request-media?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMainPlaylist(t *testing.T) {
	f, router := newStreamServer(t)

	q := directPlayQuery(f.playID)
	req := httptest.NewRequest(http.MethodGet, "/hls/main.m3u8?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, playlistContentType, rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "#EXTM3U")
	assert.Contains(t, body, "media.m3u8")
}

func TestInitSegmentUnknownSession(t *testing.T) {
	_, router := newStreamServer(t)

	req := httptest.NewRequest(http.MethodGet, "/hls/init.mp4?session=ghost", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSegmentRejectsBadNumber(t *testing.T) {
	_, router := newStreamServer(t)

	req := httptest.NewRequest(http.MethodGet, "/hls/mediaNaN.m4s", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	handler := NewHealthHandler("1.2.3")

	out, err := handler.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Body.Status)
	assert.Equal(t, "1.2.3", out.Body.Version)
	assert.Greater(t, out.Body.Goroutines, 0)
}
