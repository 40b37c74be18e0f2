package backfill

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/capstone-impacta/engagement-cli/internal/fetcher"
	"github.com/capstone-impacta/engagement-cli/internal/fetcher/mocks"
	"github.com/capstone-impacta/engagement-cli/internal/model"
	"github.com/capstone-impacta/engagement-cli/internal/resilience"
	"github.com/capstone-impacta/engagement-cli/internal/route"
	"github.com/capstone-impacta/engagement-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const prefix = "Capstone/gold/"

const facultyCSV = "data_postagem,faculdade,total_views,total_likes,total_comentarios,total_videos\n" +
	"2024-01-01,Engenharia,100,10,5,2\n" +
	"2024-01-01,Direito,50,2,1,1\n"

const networkCSV = "data_postagem,rede_social,total_views,total_likes,total_comentarios,total_videos\n" +
	"2024-01-01,instagram,100,10,5,2\n" +
	"2024-01-01,instagram,200,20,10,4\n"

const malformedCSV = "data_postagem,faculdade,total_views,total_likes,total_comentarios,total_videos\n" +
	"2024-01-02,Engenharia,100,10\n"

func newSQLite(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "backfill.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestEngine_Run_IsolatesFileFailures(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)
	objs := mocks.NewMockObjectStore(t)

	objs.On("List", mock.Anything, prefix).Return(mocks.Objects(
		prefix+"video_views_dia_faculdade.csv",
		prefix+"_SUCCESS",
		prefix+"broken_faculdade.csv",
		prefix+"video_views_dia_rede_social.csv",
	))
	objs.On("Fetch", mock.Anything, prefix+"video_views_dia_faculdade.csv").Return([]byte(facultyCSV), nil)
	objs.On("Fetch", mock.Anything, prefix+"broken_faculdade.csv").Return([]byte(malformedCSV), nil)
	objs.On("Fetch", mock.Anything, prefix+"video_views_dia_rede_social.csv").Return([]byte(networkCSV), nil)

	sum, err := NewEngine(objs, st, st, Options{Prefix: prefix}).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Files)
	assert.Equal(t, 2, sum.Loaded)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, prefix+"broken_faculdade.csv", sum.Failures[0].Key)
	var pe *fetcher.ParseError
	assert.True(t, errors.As(sum.Failures[0].Err, &pe))

	fac, err := st.LoadFacts(ctx, model.FacultyTable)
	require.NoError(t, err)
	assert.Len(t, fac, 2)

	net, err := st.LoadFacts(ctx, model.NetworkTable)
	require.NoError(t, err)
	require.Len(t, net, 1)
	assert.Equal(t, int64(200), net[0].Views)
	assert.Equal(t, int64(20), net[0].Likes)
	assert.Equal(t, int64(10), net[0].Comments)
	assert.Equal(t, int64(4), net[0].VideoCount)

	runs, err := st.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, sum.RunID, runs[0].ID)
	assert.Equal(t, store.RunComplete, runs[0].Status)
	assert.Equal(t, 1, runs[0].Failed)
}

func TestEngine_Run_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)
	objs := mocks.NewMockObjectStore(t)

	objs.On("List", mock.Anything, prefix).Return(mocks.Objects(prefix + "faculdade.csv"))
	objs.On("Fetch", mock.Anything, prefix+"faculdade.csv").Return([]byte(facultyCSV), nil)

	eng := NewEngine(objs, st, nil, Options{Prefix: prefix})
	_, err := eng.Run(ctx)
	require.NoError(t, err)
	once, err := st.LoadFacts(ctx, model.FacultyTable)
	require.NoError(t, err)

	_, err = eng.Run(ctx)
	require.NoError(t, err)
	twice, err := st.LoadFacts(ctx, model.FacultyTable)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestEngine_Run_MissingObjectIsFileScoped(t *testing.T) {
	st := newSQLite(t)
	objs := mocks.NewMockObjectStore(t)

	objs.On("List", mock.Anything, prefix).Return(mocks.Objects(prefix+"gone.csv", prefix+"faculdade.csv"))
	objs.On("Fetch", mock.Anything, prefix+"gone.csv").Return(nil, fetcher.ErrNotFound)
	objs.On("Fetch", mock.Anything, prefix+"faculdade.csv").Return([]byte(facultyCSV), nil)

	sum, err := NewEngine(objs, st, st, Options{Prefix: prefix}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Loaded)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, int64(2), sum.Rows)
}

func TestEngine_Run_ConnectivityAborts(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)
	objs := mocks.NewMockObjectStore(t)

	unreachable := &resilience.ConnectivityError{Op: "s3 get", Err: errors.New("dial tcp: i/o timeout")}
	objs.On("List", mock.Anything, prefix).Return(mocks.Objects(prefix+"a.csv", prefix+"b.csv"))
	objs.On("Fetch", mock.Anything, prefix+"a.csv").Return(nil, unreachable)

	sum, err := NewEngine(objs, st, st, Options{Prefix: prefix}).Run(ctx)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, 1, sum.Files)
	objs.AssertNotCalled(t, "Fetch", mock.Anything, prefix+"b.csv")

	runs, err := st.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunAborted, runs[0].Status)
	assert.Contains(t, runs[0].Error, "i/o timeout")
}

func TestEngine_Run_ListingErrorAborts(t *testing.T) {
	st := newSQLite(t)
	objs := mocks.NewMockObjectStore(t)

	objs.On("List", mock.Anything, prefix).Return(mocks.ObjectsThenError(errors.New("AccessDenied"), prefix+"faculdade.csv"))
	objs.On("Fetch", mock.Anything, prefix+"faculdade.csv").Return([]byte(facultyCSV), nil)

	sum, err := NewEngine(objs, st, nil, Options{Prefix: prefix}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backfill: list")
	assert.Equal(t, 1, sum.Loaded)
}

// violatingStore fails every upsert with an integrity error.
type violatingStore struct {
	store.FactStore
	calls int
}

func (v *violatingStore) UpsertFacts(context.Context, route.Destination, []model.Record) (int64, error) {
	v.calls++
	return 0, &store.ConstraintViolation{Table: "gold_video_views_dia_faculdade", Err: errors.New("duplicate key")}
}

func TestEngine_Run_ConstraintViolationAborts(t *testing.T) {
	objs := mocks.NewMockObjectStore(t)
	objs.On("List", mock.Anything, prefix).Return(mocks.Objects(prefix+"a.csv", prefix+"b.csv"))
	objs.On("Fetch", mock.Anything, prefix+"a.csv").Return([]byte(facultyCSV), nil)

	facts := &violatingStore{}
	_, err := NewEngine(objs, facts, nil, Options{Prefix: prefix}).Run(context.Background())
	var cv *store.ConstraintViolation
	require.True(t, errors.As(err, &cv))
	assert.Equal(t, 1, facts.calls)
}

func TestEngine_Run_EmptyPrefix(t *testing.T) {
	objs := mocks.NewMockObjectStore(t)
	objs.On("List", mock.Anything, prefix).Return(mocks.Objects())

	sum, err := NewEngine(objs, &violatingStore{}, nil, Options{Prefix: prefix}).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Files)
	assert.Empty(t, sum.Failures)
}

func TestEngine_Run_CancelledContext(t *testing.T) {
	objs := mocks.NewMockObjectStore(t)
	objs.On("List", mock.Anything, prefix).Return(mocks.Objects(prefix + "a.csv"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(objs, &violatingStore{}, nil, Options{Prefix: prefix}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEngine_Run_CustomSuffix(t *testing.T) {
	st := newSQLite(t)
	objs := mocks.NewMockObjectStore(t)
	objs.On("List", mock.Anything, prefix).Return(mocks.Objects(prefix+"a.csv", prefix+"a.txt"))
	objs.On("Fetch", mock.Anything, prefix+"a.txt").Return([]byte(facultyCSV), nil)

	sum, err := NewEngine(objs, st, nil, Options{Prefix: prefix, Suffix: ".txt"}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Loaded)
	assert.Equal(t, 1, sum.Skipped)
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"parse", &fetcher.ParseError{Key: "a.csv", Msg: "missing header"}, false},
		{"type", &fetcher.TypeError{Key: "a.csv", Line: 2, Field: "total_views", Value: "x"}, false},
		{"not found", fetcher.ErrNotFound, false},
		{"connectivity", &resilience.ConnectivityError{Op: "postgres", Err: errors.New("refused")}, true},
		{"constraint", &store.ConstraintViolation{Table: "t", Err: errors.New("dup")}, true},
		{"cancelled", context.Canceled, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}
