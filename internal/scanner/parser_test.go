package scanner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEpisodeSeasonEpisode(t *testing.T) {
	info := ParseEpisode("/Alpha House/Alpha.House.S02E01.The.Love.Doctor.720p.AI.WEBRip.DD5.1.x264-NTb.mkv")
	require.NotNil(t, info)
	assert.Equal(t, "alpha.house", info.Title)
	assert.Equal(t, 2, info.Season)
	assert.Equal(t, 1, info.Episode)
	assert.Zero(t, info.Number)
}

func TestParseEpisodeAnimeGroup(t *testing.T) {
	info := ParseEpisode("/Naruto/[HorribleSubs] Naruto Shippuuden - 379 [1080p].mkv")
	require.NotNil(t, info)
	assert.Equal(t, "naruto shippuuden", info.Title)
	assert.Equal(t, 379, info.Number)
}

func TestParseEpisodeAbsoluteNumber(t *testing.T) {
	info := ParseEpisode("/Naruto Shippuuden/Naruto Shippuuden.426.720p.mkv")
	require.NotNil(t, info)
	assert.Equal(t, "naruto shippuuden", info.Title)
	assert.Equal(t, 426, info.Number)

	info = ParseEpisode("Boruto Naruto Next Generations (2017) - 6.1080p h265.mkv")
	require.NotNil(t, info)
	assert.Equal(t, "boruto naruto next generations (2017)", info.Title)
	assert.Equal(t, 6, info.Number)
}

func TestParseEpisodeAirDate(t *testing.T) {
	info := ParseEpisode("/The Daily series/The.Daily.series.2014.06.03.Ricky.Gervais.HDTV.x264-D0NK.mp4")
	require.NotNil(t, info)
	assert.Equal(t, "the.daily.series", info.Title)
	assert.Equal(t,
		time.Date(2014, 6, 3, 0, 0, 0, 0, time.UTC), info.AirDate)
	assert.Equal(t, "2014-06-03", info.LookupValue())
}

func TestParseEpisodeDoubleEpisode(t *testing.T) {
	info := ParseEpisode("Star Wars Resistance.S01E01-E02.720p webdl h264 aac.mkv")
	require.NotNil(t, info)
	assert.Equal(t, "star wars resistance", info.Title)
	assert.Equal(t, 1, info.Season)
	assert.Equal(t, 1, info.Episode)
}

func TestParseEpisodeSeasonEpisodeWithAbsolute(t *testing.T) {
	info := ParseEpisode("Vinland Saga (2019) - S01E01 - 005 - [HDTV-1080p][8bit][h264][AAC 2.0].mkv")
	require.NotNil(t, info)
	assert.Equal(t, "vinland saga (2019)", info.Title)
	assert.Equal(t, 1, info.Season)
	assert.Equal(t, 1, info.Episode)
	assert.Equal(t, 5, info.Number)
}

func TestParseEpisodeNoSpuriousAbsolute(t *testing.T) {
	// The "5.1" audio tag must not be taken for an absolute number.
	info := ParseEpisode("The Big Bang Theory (2007) - S04E01 [Bluray-1080p][AAC 5.1][x265].mkv")
	require.NotNil(t, info)
	assert.Equal(t, "the big bang theory (2007)", info.Title)
	assert.Equal(t, 4, info.Season)
	assert.Equal(t, 1, info.Episode)
	assert.Zero(t, info.Number)
}

func TestParseEpisodeSpelledOut(t *testing.T) {
	info := ParseEpisode("Some Show Season 1 Episode 20.mkv")
	require.NotNil(t, info)
	assert.Equal(t, "some show", info.Title)
	assert.Equal(t, 1, info.Season)
	assert.Equal(t, 20, info.Episode)
}

func TestParseEpisodeNxMM(t *testing.T) {
	info := ParseEpisode("some.show.1x09.720p.mkv")
	require.NotNil(t, info)
	assert.Equal(t, "some.show", info.Title)
	assert.Equal(t, 1, info.Season)
	assert.Equal(t, 9, info.Episode)
	assert.Equal(t, "1-9", info.LookupValue())
}

func TestParseEpisodeNoMatch(t *testing.T) {
	assert.Nil(t, ParseEpisode("Boruto Naruto Next Generations (2017).mkv"))
	assert.Nil(t, ParseEpisode("notes.txt"))
}

func TestParseMovieTitle(t *testing.T) {
	assert.Equal(t, "uncharted (2022)",
		ParseMovieTitle("/movies/Uncharted.2022.1080p.WEBRip.x264.mkv"))
	assert.Equal(t, "the matrix (1999)",
		ParseMovieTitle("The.Matrix.(1999).2160p.BluRay.mkv"))
	assert.Equal(t, "some movie",
		ParseMovieTitle("Some Movie 720p x264.mp4"))
	assert.Equal(t, "plain movie",
		ParseMovieTitle("Plain_Movie.mkv"))
	assert.Equal(t, "", ParseMovieTitle("1080p.mkv"))
}
