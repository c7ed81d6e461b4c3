package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfsfabric/corevfs/jobs"
)

// stubBackend implements Backend with just enough behaviour to let
// dispatch tests assert the right vtable method gets called with the
// right arguments.
type stubBackend struct {
	queryInfoCalls []string
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) OpenForRead(ctx context.Context, path string) (any, error) { return "h1", nil }
func (s *stubBackend) OpenForWrite(ctx context.Context, path, mode string) (any, error) {
	return "h2", nil
}
func (s *stubBackend) Read(ctx context.Context, handle any, count int) ([]byte, error) {
	return []byte("data"), nil
}
func (s *stubBackend) Write(ctx context.Context, handle any, data []byte) (int, error) {
	return len(data), nil
}
func (s *stubBackend) Seek(ctx context.Context, handle any, offset int64, whence int) (int64, error) {
	return offset, nil
}
func (s *stubBackend) Close(ctx context.Context, handle any) error { return nil }
func (s *stubBackend) QueryInfo(ctx context.Context, path, attrs string) (map[string]any, error) {
	s.queryInfoCalls = append(s.queryInfoCalls, path)
	return map[string]any{"path": path}, nil
}
func (s *stubBackend) QueryFsInfo(ctx context.Context, path, attrs string) (map[string]any, error) {
	return map[string]any{}, nil
}
func (s *stubBackend) Enumerate(ctx context.Context, path, attrs string) ([]map[string]any, error) {
	return nil, nil
}
func (s *stubBackend) SetDisplayName(ctx context.Context, path, name string) (string, error) {
	return "/renamed", nil
}
func (s *stubBackend) Delete(ctx context.Context, path string) error       { return nil }
func (s *stubBackend) Trash(ctx context.Context, path string) error       { return nil }
func (s *stubBackend) MakeDirectory(ctx context.Context, path string) error { return nil }
func (s *stubBackend) MakeSymlink(ctx context.Context, path, target string) error { return nil }
func (s *stubBackend) Copy(ctx context.Context, src, dst string, flags int) error { return nil }
func (s *stubBackend) Move(ctx context.Context, src, dst string, flags int) error { return nil }
func (s *stubBackend) Push(ctx context.Context, local, remote string, flags int) error {
	return nil
}
func (s *stubBackend) Pull(ctx context.Context, remote, local string, flags int) error {
	return nil
}
func (s *stubBackend) SetAttribute(ctx context.Context, path, attr string, value any) error {
	return nil
}
func (s *stubBackend) QuerySettableAttributes(ctx context.Context, path string) ([]string, error) {
	return nil, nil
}
func (s *stubBackend) QueryWritableNamespaces(ctx context.Context, path string) ([]string, error) {
	return nil, nil
}
func (s *stubBackend) CreateDirMonitor(ctx context.Context, path string) (string, error) {
	return "/mon/1", nil
}
func (s *stubBackend) CreateFileMonitor(ctx context.Context, path string) (string, error) {
	return "/mon/2", nil
}
func (s *stubBackend) MountMountable(ctx context.Context, path string) error         { return nil }
func (s *stubBackend) UnmountMountable(ctx context.Context, path string, f int) error { return nil }
func (s *stubBackend) StartMountable(ctx context.Context, path string) error         { return nil }
func (s *stubBackend) StopMountable(ctx context.Context, path string, f int) error   { return nil }
func (s *stubBackend) PollMountable(ctx context.Context, path string) error          { return nil }
func (s *stubBackend) OpenIconForRead(ctx context.Context, iconID string) (any, error) {
	return "icon-h", nil
}
func (s *stubBackend) Unmount(ctx context.Context, flags int) error { return nil }

func TestKindForMemberResolvesEveryTableEntry(t *testing.T) {
	for member := range memberToKind {
		_, ok := KindForMember(member)
		assert.True(t, ok, member)
	}
	_, ok := KindForMember("NotAMethod")
	assert.False(t, ok)
}

func TestBuildJobQueryInfoCallsBackend(t *testing.T) {
	b := &stubBackend{}
	j, err := BuildJob(b, jobs.QueryInfo, 1, []any{"/docs/a.txt", "*"})
	require.NoError(t, err)

	err = j.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/docs/a.txt"}, b.queryInfoCalls)

	reply, err := j.CreateReply()
	require.NoError(t, err)
	info := reply[0].(map[string]any)
	assert.Equal(t, "/docs/a.txt", info["path"])
}

func TestBuildJobUnknownKind(t *testing.T) {
	b := &stubBackend{}
	_, err := BuildJob(b, jobs.Kind(999), 1, nil)
	require.Error(t, err)
}
