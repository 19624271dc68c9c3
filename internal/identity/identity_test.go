package identity

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/audio"
)

func utterance(level int16, n int) *audio.Utterance {
	samples := make([]int16, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = level
		} else {
			samples[i] = -level / 2
		}
	}
	return &audio.Utterance{Samples: samples, SampleRate: audio.CaptureSampleRate}
}

func TestExtractFeatures(t *testing.T) {
	f, ok := ExtractFeatures([]int16{1, -1, 1, -1})
	require.True(t, ok)
	assert.InDelta(t, 0, f.Mean, 1e-12)
	assert.InDelta(t, 1, f.Std, 1e-12)
	assert.Equal(t, 1.0, f.Max)
	assert.Equal(t, -1.0, f.Min)
	assert.InDelta(t, 1, f.Energy, 1e-12)

	// large samples must not overflow
	f, _ = ExtractFeatures([]int16{32767, -32768})
	assert.Greater(t, f.Energy, 1e9)

	_, ok = ExtractFeatures(nil)
	assert.False(t, ok)
}

func TestSimilarity(t *testing.T) {
	a := Features{Mean: 3, Std: 900, Max: 12000, Min: -11000, Energy: 810000}
	assert.Equal(t, 100.0, Similarity(a, a))
	assert.Equal(t, 100.0, Similarity(Features{}, Features{}))

	// opposite signs on every feature are maximally different
	neg := Features{Mean: -3, Std: -900, Max: -12000, Min: 11000, Energy: -810000}
	assert.InDelta(t, 0, Similarity(a, neg), 1e-6)

	rng := rand.New(rand.NewSource(3))
	random := func() Features {
		return Features{
			Mean:   rng.NormFloat64() * 10,
			Std:    rng.Float64() * 3000,
			Max:    rng.Float64() * 32767,
			Min:    -rng.Float64() * 32768,
			Energy: rng.Float64() * 1e7,
		}
	}
	for i := 0; i < 200; i++ {
		x, y := random(), random()
		s := Similarity(x, y)
		assert.InDelta(t, s, Similarity(y, x), 1e-9, "symmetric")
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 100.0)
		assert.Equal(t, 100.0, Similarity(x, x))
	}
}

func TestEnrollAndIdentify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	store := Open(path, nil)
	assert.Empty(t, store.Users())

	name, score := store.Identify(utterance(8000, 1600), 50)
	assert.Empty(t, name, "nobody enrolled yet")
	assert.Zero(t, score)

	require.NoError(t, store.Enroll("Tony", utterance(8000, 1600)))
	require.NoError(t, store.Enroll("Pepper", utterance(500, 1600)))
	assert.Equal(t, "Pepper", store.Current())

	name, score = store.Identify(utterance(8000, 3200), 50)
	assert.Equal(t, "Tony", name)
	assert.InDelta(t, 100, score, 1e-9)
	assert.Equal(t, "Tony", store.Current())
	assert.Equal(t, "señor Tony", store.Greeting(""))

	// a threshold above every score clears the current user
	name, score = store.Identify(utterance(3000, 1600), 101)
	assert.Empty(t, name)
	assert.Zero(t, score)
	assert.Empty(t, store.Current())
	assert.Equal(t, "señor", store.Greeting(""))
	assert.Equal(t, "señor Pepper", store.Greeting("Pepper"))
}

func TestEnrollPersistsAndCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "users.yaml")
	store := Open(path, nil)
	require.NoError(t, store.Enroll("Tony", utterance(8000, 1600)))
	require.NoError(t, store.Enroll("Tony", utterance(7000, 1600)))

	reopened := Open(path, nil)
	users := reopened.Users()
	require.Len(t, users, 1)
	assert.Equal(t, "Tony", users[0].Name)
	assert.Equal(t, 2, users[0].RegisteredCount)
	assert.Equal(t, 7000.0, users[0].Features.Max, "latest enrollment wins")
	assert.Empty(t, reopened.Current(), "current user is not persisted")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "registered_count: 2")
}

func TestEnrollRejectsBadInput(t *testing.T) {
	store := Open(filepath.Join(t.TempDir(), "users.yaml"), nil)
	assert.Error(t, store.Enroll("  ", utterance(8000, 10)))
	assert.Error(t, store.Enroll("Tony", nil))
	assert.Error(t, store.Enroll("Tony", &audio.Utterance{SampleRate: 16000}))
	assert.Empty(t, store.Users())
}

func TestForget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	store := Open(path, nil)
	require.NoError(t, store.Enroll("Tony", utterance(8000, 100)))

	ok, err := store.Forget("Tony")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, store.Current())

	ok, err = store.Forget("Tony")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Empty(t, Open(path, nil).Users())
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users: [not, a, map"), 0644))

	store := Open(path, nil)
	assert.Empty(t, store.Users())
	require.NoError(t, store.Enroll("Tony", utterance(8000, 100)))
	assert.Len(t, Open(path, nil).Users(), 1)
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	store := Open(path, nil)
	require.NoError(t, store.Enroll("Tony", utterance(8000, 100)))

	other := Open(path, nil)
	require.NoError(t, other.Enroll("Pepper", utterance(500, 100)))
	_, err := other.Forget("Tony")
	require.NoError(t, err)

	store.Reload()
	users := store.Users()
	require.Len(t, users, 1)
	assert.Equal(t, "Pepper", users[0].Name)
	assert.Empty(t, store.Current(), "forgotten user is no longer current")

	// 半截文件不覆盖已有用户
	require.NoError(t, os.WriteFile(path, []byte("users: [broken"), 0644))
	store.Reload()
	assert.Len(t, store.Users(), 1)

	require.NoError(t, os.Remove(path))
	store.Reload()
	assert.Empty(t, store.Users())
}

func TestRefreshAppliesOtherProcessChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	store := Open(path, nil)
	require.NoError(t, store.Enroll("Tony", utterance(8000, 100)))
	assert.False(t, store.Refresh(), "not watching yet")

	require.NoError(t, store.Watch())
	defer store.Close()

	other := Open(path, nil)
	require.NoError(t, other.Enroll("Pepper", utterance(500, 100)))
	_, err := other.Forget("Tony")
	require.NoError(t, err)

	// nothing changes until Refresh is called
	assert.Equal(t, "Tony", store.Current())

	assert.Eventually(t, func() bool {
		store.Refresh()
		users := store.Users()
		return len(users) == 1 && users[0].Name == "Pepper"
	}, 5*time.Second, 20*time.Millisecond)
	assert.Empty(t, store.Current())
}

func TestRefreshWithoutChanges(t *testing.T) {
	dir := t.TempDir()
	store := Open(filepath.Join(dir, "users.yaml"), nil)
	require.NoError(t, store.Watch())
	require.NoError(t, store.Watch(), "watching twice is a no-op")

	// a different file in the same directory
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	time.Sleep(50 * time.Millisecond)
	assert.False(t, store.Refresh())

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
	assert.False(t, store.Refresh())
}
