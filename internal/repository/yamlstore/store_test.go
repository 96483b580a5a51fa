package yamlstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacyblur/internal/logger"
	"privacyblur/internal/model"
	"privacyblur/internal/repository"
)

const sample = `
keyword_lists:
  office: [confidential, Salary]
profiles:
  - name: Office
    keyword_list: office
    text_technique: fill
    categories:
      face: {enabled: true, technique: pixelate, intensity: 0.5, max_intensity: 0.9, min_confidence: 0.4}
      credit_card: {enabled: true, technique: gaussian, intensity: 0.8}
      document: {enabled: false, technique: blur, intensity: 0.3}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestOpen_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	writeFile(t, path, sample)

	s, err := Open(path, logger.Discard())
	require.NoError(t, err)

	p, err := s.Profile("Office")
	require.NoError(t, err)
	assert.Equal(t, "office", p.KeywordList)
	assert.Equal(t, model.TechniqueFill, p.TextTechnique)
	assert.Equal(t, model.CategoryRule{Enabled: true, Technique: model.TechniquePixelate, Intensity: 0.5, MaxIntensity: 0.9, MinConfidence: 0.4}, p.Categories[model.CategoryFace])
	assert.Equal(t, model.TechniqueBlur, p.Categories[model.CategoryCard].Technique)
	assert.False(t, p.Categories[model.CategoryDocument].Enabled)

	words, err := s.KeywordList("office")
	require.NoError(t, err)
	assert.Equal(t, []string{"confidential", "Salary"}, words)

	_, err = s.Profile("Home")
	assert.ErrorIs(t, err, model.ErrProfileNotFound)
}

func TestOpen_CreatesStockProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "profiles.yaml")

	s, err := Open(path, logger.Discard())
	require.NoError(t, err)

	names, err := s.ProfileNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"Default Privacy", "High Privacy", "Professional Call"}, names)
	assert.Equal(t, repository.DefaultProfiles()[0], mustProfile(t, s, "Default Privacy"))
	assert.Equal(t, repository.DefaultKeywordLists(), s.KeywordLists())
}

func TestShippedProfilesFileMatchesStock(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "configs", "profiles.yaml"))
	require.NoError(t, err)

	profiles, keywords, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, repository.DefaultProfiles(), profiles)
	assert.Equal(t, repository.DefaultKeywordLists(), keywords)
}

func mustProfile(t *testing.T, s *Store, name string) model.Profile {
	t.Helper()
	p, err := s.Profile(name)
	require.NoError(t, err)
	return p
}

func TestProfile_ReturnsCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	writeFile(t, path, sample)
	s, err := Open(path, logger.Discard())
	require.NoError(t, err)

	p := mustProfile(t, s, "Office")
	p.Categories[model.CategoryFace] = model.CategoryRule{}
	words, _ := s.KeywordList("office")
	words[0] = "changed"

	assert.True(t, mustProfile(t, s, "Office").Categories[model.CategoryFace].Enabled)
	again, _ := s.KeywordList("office")
	assert.Equal(t, "confidential", again[0])
}

func TestDecode_Rejects(t *testing.T) {
	tests := map[string]string{
		"bad yaml":      "profiles: [",
		"no name":       "profiles:\n  - categories: {}\n",
		"duplicate":     "profiles:\n  - name: a\n  - name: a\n",
		"bad category":  "profiles:\n  - name: a\n    categories:\n      hat: {technique: blur}\n",
		"bad technique": "profiles:\n  - name: a\n    categories:\n      face: {technique: swirl}\n",
		"bad intensity": "profiles:\n  - name: a\n    categories:\n      face: {technique: blur, intensity: 2}\n",
		"bad text tech": "profiles:\n  - name: a\n    text_technique: swirl\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	data, err := Encode(repository.DefaultProfiles(), repository.DefaultKeywordLists())
	require.NoError(t, err)
	profiles, keywords, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, repository.DefaultProfiles(), profiles)
	assert.Equal(t, repository.DefaultKeywordLists(), keywords)
}

func TestWatch_HotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	writeFile(t, path, sample)
	s, err := Open(path, logger.Discard())
	require.NoError(t, err)

	reloaded := make(chan struct{}, 8)
	s.OnChange(func() { reloaded <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx))

	writeFile(t, path, "profiles: [")
	time.Sleep(3 * reloadDebounce)
	assert.True(t, mustProfile(t, s, "Office").Categories[model.CategoryFace].Enabled, "broken file keeps previous profiles")

	writeFile(t, path, `
profiles:
  - name: Office
    categories:
      face: {enabled: false, technique: none}
`)
	require.Eventually(t, func() bool {
		p, err := s.Profile("Office")
		return err == nil && !p.Categories[model.CategoryFace].Enabled
	}, 3*time.Second, 20*time.Millisecond)

	select {
	case <-reloaded:
	case <-time.After(time.Second):
		t.Fatal("change callback not called")
	}
}
