package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"omnifs/internal/users"
)

func testParams() FormatParams {
	return FormatParams{
		TotalSize: 1 << 20, HeaderSize: 512, BlockSize: 256,
		MaxUsers: 8, MaxEntries: 32,
		AdminUsername: "admin", AdminPassword: "admin123",
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.omnifs")
	e, err := Format(path, testParams(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func loginAdmin(t *testing.T, e *Engine) string {
	t.Helper()
	info, err := e.Login("admin", "admin123")
	require.NoError(t, err)
	return info.Token
}

// Scenario 1: create a nested file and confirm listing/reading round-trip.
func TestScenarioCreateAndListNestedFile(t *testing.T) {
	e := newTestEngine(t)
	s := loginAdmin(t, e)

	require.NoError(t, e.DirCreate(s, "/docs"))
	require.NoError(t, e.FileCreate(s, "/docs/hello.txt", []byte("Hi")))

	got, err := e.FileRead(s, "/docs/hello.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("Hi"), got)

	entries, err := e.DirList(s, "/docs")
	require.NoError(t, err)
	require.Equal(t, []DirEntry{{Name: "hello.txt", IsDir: false, Size: 2}}, entries)
}

// Scenario 2: a Normal user is refused an admin-gated operation.
func TestScenarioNormalUserRefusedDirCreate(t *testing.T) {
	e := newTestEngine(t)
	s := loginAdmin(t, e)

	require.NoError(t, e.UserCreate(s, "bob", "bobpw", users.RoleNormal))
	require.NoError(t, e.Logout(s))

	bobInfo, err := e.Login("bob", "bobpw")
	require.NoError(t, err)

	err = e.DirCreate(bobInfo.Token, "/x")
	require.ErrorIs(t, err, ErrPermissionDenied)
}

// Scenario 3: in-place edit and its InvalidArgument boundary.
func TestScenarioFileEditInPlaceAndOverrun(t *testing.T) {
	e := newTestEngine(t)
	s := loginAdmin(t, e)

	require.NoError(t, e.FileCreate(s, "/a", []byte("123")))
	require.NoError(t, e.FileEdit(s, "/a", []byte("X"), 1))

	got, err := e.FileRead(s, "/a")
	require.NoError(t, err)
	require.Equal(t, []byte("1X3"), got)

	err = e.FileEdit(s, "/a", []byte("YY"), 4)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

// Scenario 4: deleting a file restores the pre-create free-block count.
func TestScenarioFileDeleteRestoresFreeSpace(t *testing.T) {
	e := newTestEngine(t)
	s := loginAdmin(t, e)

	before, err := e.GetStats(s)
	require.NoError(t, err)

	require.NoError(t, e.FileCreate(s, "/b", []byte("x")))
	require.NoError(t, e.FileDelete(s, "/b"))

	after, err := e.GetStats(s)
	require.NoError(t, err)
	require.Equal(t, before.FreeBlocks, after.FreeBlocks)
}

// Scenario 5: rename moves content and updates the path index both ways.
func TestScenarioFileRenameMovesContent(t *testing.T) {
	e := newTestEngine(t)
	s := loginAdmin(t, e)

	require.NoError(t, e.FileCreate(s, "/c", []byte("abc")))
	require.NoError(t, e.FileRename(s, "/c", "/d"))

	exists, err := e.FileExists(s, "/c")
	require.NoError(t, err)
	require.False(t, exists)

	exists, err = e.FileExists(s, "/d")
	require.NoError(t, err)
	require.True(t, exists)

	got, err := e.FileRead(s, "/d")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)
}

// file_rename(a,b); file_rename(b,a) restores the path index.
func TestFileRenameRoundTripRestoresPath(t *testing.T) {
	e := newTestEngine(t)
	s := loginAdmin(t, e)

	require.NoError(t, e.FileCreate(s, "/a", []byte("v")))
	require.NoError(t, e.FileRename(s, "/a", "/b"))
	require.NoError(t, e.FileRename(s, "/b", "/a"))

	exists, err := e.FileExists(s, "/a")
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = e.FileExists(s, "/b")
	require.NoError(t, err)
	require.False(t, exists)
}

// Scenario 6: dir_delete refuses a non-empty directory, then succeeds once
// empty.
func TestScenarioDirDeleteRequiresEmpty(t *testing.T) {
	e := newTestEngine(t)
	s := loginAdmin(t, e)

	require.NoError(t, e.DirCreate(s, "/e"))
	require.NoError(t, e.FileCreate(s, "/e/f", []byte("z")))

	err := e.DirDelete(s, "/e")
	require.ErrorIs(t, err, ErrDirectoryNotEmpty)

	require.NoError(t, e.FileDelete(s, "/e/f"))
	require.NoError(t, e.DirDelete(s, "/e"))
}

func TestDirDeleteRootRefused(t *testing.T) {
	e := newTestEngine(t)
	s := loginAdmin(t, e)

	err := e.DirDelete(s, "/")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestUserDeletePrimaryAdminRefused(t *testing.T) {
	e := newTestEngine(t)
	s := loginAdmin(t, e)

	err := e.UserDelete(s, "admin")
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestLoginInactiveOrWrongPasswordBothAuthFailed(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Login("admin", "wrongpw")
	require.ErrorIs(t, err, ErrAuthFailed)

	_, err = e.Login("ghost", "whatever")
	require.ErrorIs(t, err, ErrAuthFailed)

	s := loginAdmin(t, e)
	require.NoError(t, e.UserCreate(s, "bob", "bobpw", users.RoleNormal))
	require.NoError(t, e.UserDelete(s, "bob"))
	_, err = e.Login("bob", "bobpw")
	require.ErrorIs(t, err, ErrAuthFailed)
}

func TestFileCreateExactlyBlockSizeSucceeds(t *testing.T) {
	e := newTestEngine(t)
	s := loginAdmin(t, e)

	content := make([]byte, testParams().BlockSize)
	require.NoError(t, e.FileCreate(s, "/full", content))

	got, err := e.FileRead(s, "/full")
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestFileCreateOverBlockSizeRejected(t *testing.T) {
	e := newTestEngine(t)
	s := loginAdmin(t, e)

	content := make([]byte, testParams().BlockSize+1)
	err := e.FileCreate(s, "/toobig", content)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDirCreateRestoresEntryCountOnDelete(t *testing.T) {
	e := newTestEngine(t)
	s := loginAdmin(t, e)

	before, err := e.GetStats(s)
	require.NoError(t, err)

	require.NoError(t, e.DirCreate(s, "/tmp"))
	require.NoError(t, e.DirDelete(s, "/tmp"))

	after, err := e.GetStats(s)
	require.NoError(t, err)
	require.Equal(t, before.UsedEntries, after.UsedEntries)
}

func TestSetPermissionsRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	s := loginAdmin(t, e)

	require.NoError(t, e.FileCreate(s, "/p", []byte("v")))
	require.NoError(t, e.SetPermissions(s, "/p", 0o600))

	meta, err := e.GetMetadata(s, "/p")
	require.NoError(t, err)
	require.Equal(t, uint32(0o600), meta.Perm)
}

func TestGetMetadataNameIsShortNameNotPath(t *testing.T) {
	e := newTestEngine(t)
	s := loginAdmin(t, e)

	require.NoError(t, e.DirCreate(s, "/docs"))
	require.NoError(t, e.FileCreate(s, "/docs/hello.txt", []byte("v")))

	meta, err := e.GetMetadata(s, "/docs/hello.txt")
	require.NoError(t, err)
	require.Equal(t, "hello.txt", meta.Name)
}

func TestGetStatsSplitsFileAndDirectoryCounts(t *testing.T) {
	e := newTestEngine(t)
	s := loginAdmin(t, e)

	require.NoError(t, e.DirCreate(s, "/docs"))
	require.NoError(t, e.FileCreate(s, "/docs/a", []byte("v")))
	require.NoError(t, e.FileCreate(s, "/docs/b", []byte("v")))

	stats, err := e.GetStats(s)
	require.NoError(t, err)
	require.Equal(t, uint32(1), stats.DirectoryCount)
	require.Equal(t, uint32(2), stats.FileCount)
	require.Equal(t, stats.FileCount+stats.DirectoryCount, stats.UsedEntries)
}

func TestUserListReflectsActiveUsersOnly(t *testing.T) {
	e := newTestEngine(t)
	s := loginAdmin(t, e)

	require.NoError(t, e.UserCreate(s, "bob", "bobpw", users.RoleNormal))
	list, err := e.UserList(s)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"admin", "bob"}, list)

	require.NoError(t, e.UserDelete(s, "bob"))
	list, err = e.UserList(s)
	require.NoError(t, err)
	require.Equal(t, []string{"admin"}, list)
}

// Restart (close then reopen) preserves in-use metadata, active users, file
// content, and the free-block bitmap.
func TestRestartPreservesState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restart.omnifs")
	e, err := Format(path, testParams(), zap.NewNop())
	require.NoError(t, err)
	s := loginAdmin(t, e)
	require.NoError(t, e.DirCreate(s, "/keep"))
	require.NoError(t, e.FileCreate(s, "/keep/f", []byte("persist")))
	require.NoError(t, e.UserCreate(s, "carol", "carolpw", users.RoleNormal))

	statsBefore, err := e.GetStats(s)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	e2, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer e2.Close()

	s2 := loginAdmin(t, e2)
	got, err := e2.FileRead(s2, "/keep/f")
	require.NoError(t, err)
	require.Equal(t, []byte("persist"), got)

	list, err := e2.UserList(s2)
	require.NoError(t, err)
	require.Contains(t, list, "carol")

	statsAfter, err := e2.GetStats(s2)
	require.NoError(t, err)
	require.Equal(t, statsBefore.FreeBlocks, statsAfter.FreeBlocks)
}

func TestSessionInvalidatedAfterLogout(t *testing.T) {
	e := newTestEngine(t)
	s := loginAdmin(t, e)
	require.NoError(t, e.Logout(s))

	_, err := e.GetSessionInfo(s)
	require.ErrorIs(t, err, ErrUnauthorized)
}
