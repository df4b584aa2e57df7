package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobAt(t *testing.T, id string, kind Kind, created time.Time) *Job {
	t.Helper()
	j := NewWithID(id, kind)
	j.CreatedAt = created
	return j
}

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	j := New(KindClip)

	require.NoError(t, repo.Save(ctx, j))

	require.NoError(t, j.Start())
	j.OutputPath = "out/launch/clip.mp4"

	saved, err := repo.FindByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInQueue, saved.Status, "unsaved changes are not visible")

	require.NoError(t, repo.Save(ctx, j))
	saved, err = repo.FindByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, saved.Status)
	assert.Equal(t, "out/launch/clip.mp4", saved.OutputPath)
}

func TestMemoryRepository_FindByID_NotFound(t *testing.T) {
	_, err := NewMemoryRepository().FindByID(context.Background(), "job-missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryRepository_FindByID_ReturnsClone(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	j := New(KindClip)
	require.NoError(t, repo.Save(ctx, j))

	found, err := repo.FindByID(ctx, j.ID)
	require.NoError(t, err)
	found.Error = "changed"
	require.NoError(t, found.Start())

	stored, err := repo.FindByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Error)
	assert.Equal(t, StatusInQueue, stored.Status)
}

func TestMemoryRepository_List(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	jobs, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)

	oldClip := jobAt(t, "job-a", KindClip, base)
	chainJob := jobAt(t, "job-b", KindChain, base.Add(time.Minute))
	newClip := jobAt(t, "job-c", KindClip, base.Add(2*time.Minute))
	require.NoError(t, newClip.Start())
	require.NoError(t, newClip.Fail("boom"))
	for _, j := range []*Job{oldClip, chainJob, newClip} {
		require.NoError(t, repo.Save(ctx, j))
	}

	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{"all newest first", ListFilter{}, []string{"job-c", "job-b", "job-a"}},
		{"by kind", ListFilter{Kind: KindClip}, []string{"job-c", "job-a"}},
		{"by status", ListFilter{Status: StatusFailed}, []string{"job-c"}},
		{"active only", ListFilter{Active: true}, []string{"job-b", "job-a"}},
		{"combined", ListFilter{Kind: KindChain, Status: StatusFailed}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			var got []string
			for _, j := range jobs {
				got = append(got, j.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMemoryRepository_List_SameInstantOrderedByID(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now()
	for _, id := range []string{"job-z", "job-m", "job-a"} {
		require.NoError(t, repo.Save(ctx, jobAt(t, id, KindClip, now)))
	}

	jobs, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "job-a", jobs[0].ID)
	assert.Equal(t, "job-z", jobs[2].ID)
}

func TestMemoryRepository_List_ReturnsClones(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	j := New(KindClip)
	require.NoError(t, repo.Save(ctx, j))

	jobs, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	jobs[0].Error = "changed"

	stored, err := repo.FindByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Error)
}

func TestMemoryRepository_ConcurrentAccess(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = repo.Save(ctx, New(KindClip))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = repo.List(ctx, ListFilter{Active: true})
		}
	}()
	wg.Wait()

	jobs, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, jobs, 100)
}
