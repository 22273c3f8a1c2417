package atoms_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	atoms "github.com/goliatone/go-atoms"
	"github.com/goliatone/go-atoms/pkg/events"
)

func quietManager(opts ...atoms.ManagerOption) *atoms.Manager {
	opts = append([]atoms.ManagerOption{atoms.WithLogger(atoms.NopLogger())}, opts...)
	return atoms.NewManager(opts...)
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestEntryStartsFromDefaultOnEmptyStorage(t *testing.T) {
	m := quietManager(atoms.WithOriginID("tabA"))
	storage := newCountingStorage()

	entry, err := atoms.Acquire(m, atoms.Config[int]{Key: "counter", DefaultValue: 0}, storage)
	require.NoError(t, err)
	assert.Equal(t, 0, entry.Get())
	assert.Equal(t, uint64(0), entry.Version())
	assert.False(t, entry.Mounted())
}

func TestEntryRestoresStoredValueAndVersion(t *testing.T) {
	m := quietManager(atoms.WithOriginID("tabB"))
	storage := newCountingStorage()
	require.NoError(t, storage.SetItem("counter", `{"value":5,"version":3,"originId":"tabA"}`))

	entry, err := atoms.Acquire(m, atoms.Config[int]{Key: "counter", DefaultValue: 0}, storage)
	require.NoError(t, err)
	assert.Equal(t, 5, entry.Get())
	assert.Equal(t, uint64(3), entry.Version())
}

func TestEntryFallsBackToDefaultOnCorruptStorage(t *testing.T) {
	logger := &testLogger{}
	m := atoms.NewManager(atoms.WithLogger(logger), atoms.WithOriginID("tabA"))
	storage := newCountingStorage()
	require.NoError(t, storage.SetItem("counter", `{broken`))

	entry, err := atoms.Acquire(m, atoms.Config[int]{Key: "counter", DefaultValue: 42}, storage)
	require.NoError(t, err)
	assert.Equal(t, 42, entry.Get())
	assert.Equal(t, uint64(0), entry.Version())
	assert.True(t, logger.contains("unreadable stored state"))
}

func TestPersistenceActiveIffMounted(t *testing.T) {
	m := quietManager(atoms.WithOriginID("tabA"))
	storage := newCountingStorage()
	entry, err := atoms.Acquire(m, atoms.Config[int]{Key: "counter", DefaultValue: 0}, storage)
	require.NoError(t, err)

	entry.Set(1)
	entry.Flush()
	assert.Zero(t, storage.writeCount(), "no writes while unmounted")

	entry.Mount()
	entry.Mount()
	entry.Unmount()
	require.True(t, entry.Mounted(), "net mount count still positive")

	entry.Set(2)
	entry.Unmount()
	assert.Equal(t, 1, storage.writeCount(), "last unmount flushes the pending write")
	assert.False(t, entry.Mounted())

	entry.Set(3)
	entry.Flush()
	assert.Equal(t, 1, storage.writeCount(), "persistence stays inactive after teardown")
}

func TestDebounceWindowCollapsesIntoOneWrite(t *testing.T) {
	m := quietManager(atoms.WithOriginID("tabA"))
	storage := newCountingStorage()
	entry, err := atoms.Acquire(m, atoms.Config[int]{Key: "counter", DefaultValue: 0}, storage)
	require.NoError(t, err)

	entry.Mount()
	defer entry.Unmount()

	entry.Set(1)
	entry.Set(2)
	entry.Set(3)
	entry.Flush()

	require.Equal(t, 1, storage.writeCount())
	raw, ok := storage.GetItem("counter")
	require.True(t, ok)
	remote, err := atoms.ParseRemoteState(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), remote.Version)
	assert.Equal(t, "tabA", remote.OriginID)
	assert.JSONEq(t, `3`, string(remote.Value))
	assert.Equal(t, uint64(1), entry.Version())
}

func TestDebouncedWriteFiresWithoutExplicitFlush(t *testing.T) {
	m := quietManager(atoms.WithOriginID("tabA"), atoms.WithDebounceWait(20*time.Millisecond))
	storage := newCountingStorage()
	entry, err := atoms.Acquire(m, atoms.Config[int]{Key: "counter", DefaultValue: 0}, storage)
	require.NoError(t, err)

	entry.Mount()
	defer entry.Unmount()
	entry.Set(9)

	require.Eventually(t, func() bool { return storage.writeCount() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestWriteRoundTripReconstructsEntry(t *testing.T) {
	storage := newCountingStorage()

	first := quietManager(atoms.WithOriginID("tabA"))
	entry, err := atoms.Acquire(first, atoms.Config[string]{Key: "greeting", DefaultValue: ""}, storage)
	require.NoError(t, err)
	entry.Mount()
	entry.Set("hello")
	entry.Unmount()

	second := quietManager(atoms.WithOriginID("tabB"))
	restored, err := atoms.Acquire(second, atoms.Config[string]{Key: "greeting", DefaultValue: ""}, storage)
	require.NoError(t, err)
	assert.Equal(t, "hello", restored.Get())
	assert.Equal(t, entry.Version(), restored.Version())
}

func TestWriteFailureKeepsLocalStateAndVersionAdvances(t *testing.T) {
	logger := &testLogger{}
	m := atoms.NewManager(atoms.WithLogger(logger), atoms.WithOriginID("tabA"))
	storage := newCountingStorage()
	entry, err := atoms.Acquire(m, atoms.Config[int]{Key: "counter", DefaultValue: 0}, storage)
	require.NoError(t, err)

	entry.Mount()
	defer entry.Unmount()

	storage.failNextWrite()
	entry.Set(1)
	entry.Flush()
	assert.Equal(t, 1, entry.Get(), "in-memory state survives the failed write")
	assert.Equal(t, uint64(1), entry.Version(), "the increment stands even when the write fails")
	assert.True(t, logger.contains("write persisted state"))
	_, ok := storage.GetItem("counter")
	assert.False(t, ok)

	entry.Set(2)
	entry.Flush()
	raw, ok := storage.GetItem("counter")
	require.True(t, ok)
	remote, err := atoms.ParseRemoteState(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), remote.Version, "next successful write carries the higher version")
}

func TestNonPersistentEntryDoesNoStorageIO(t *testing.T) {
	m := quietManager(atoms.WithOriginID("tabA"))
	storage := newCountingStorage()
	require.NoError(t, storage.SetItem("counter", `{"value":5,"version":3,"originId":"tabX"}`))

	entry, err := atoms.Acquire(m, atoms.Config[int]{Key: "counter", DefaultValue: 7}, storage,
		atoms.WithPersistent[int](false))
	require.NoError(t, err)
	assert.Equal(t, 7, entry.Get(), "stored value is not read in pure in-memory mode")

	entry.Mount()
	entry.Set(8)
	entry.Flush()
	entry.Unmount()
	assert.Equal(t, 1, storage.writeCount(), "only the seeding write ever happened")
}

func TestOverrideValueWinsOverStoredValue(t *testing.T) {
	m := quietManager(atoms.WithOriginID("tabB"))
	storage := newCountingStorage()
	require.NoError(t, storage.SetItem("counter", `{"value":5,"version":3,"originId":"tabA"}`))

	entry, err := atoms.Acquire(m, atoms.Config[int]{Key: "counter", DefaultValue: 0}, storage,
		atoms.WithOverride(11))
	require.NoError(t, err)
	assert.Equal(t, 11, entry.Get())
	assert.Equal(t, uint64(3), entry.Version(), "a valid stored record still restores the version")
}

func TestSyncWithAcceptsHigherVersion(t *testing.T) {
	m := quietManager(atoms.WithOriginID("tabB"))
	entry, err := atoms.Acquire(m, atoms.Config[int]{Key: "counter", DefaultValue: 0}, newCountingStorage())
	require.NoError(t, err)

	entry.SyncWith(atoms.RemoteState{Value: rawJSON(t, 7), Version: 3, OriginID: "tabA"})
	assert.Equal(t, 7, entry.Get())
	assert.Equal(t, uint64(3), entry.Version())
}

func TestSyncWithIgnoresStaleVersion(t *testing.T) {
	m := quietManager(atoms.WithOriginID("tabB"))
	storage := newCountingStorage()
	require.NoError(t, storage.SetItem("counter", `{"value":5,"version":3,"originId":"tabB"}`))
	entry, err := atoms.Acquire(m, atoms.Config[int]{Key: "counter", DefaultValue: 0}, storage)
	require.NoError(t, err)

	entry.SyncWith(atoms.RemoteState{Value: rawJSON(t, 1), Version: 2, OriginID: "tabA"})
	assert.Equal(t, 5, entry.Get())
	assert.Equal(t, uint64(3), entry.Version())
}

func TestSyncWithTieBreaksByOriginOrder(t *testing.T) {
	storage := newCountingStorage()
	require.NoError(t, storage.SetItem("flag", `{"value":"local","version":3,"originId":"aaa"}`))

	m := quietManager(atoms.WithOriginID("aaa"))
	entry, err := atoms.Acquire(m, atoms.Config[string]{Key: "flag", DefaultValue: ""}, storage)
	require.NoError(t, err)

	// Remote "bbb" sorts lexicographically after local "aaa": accepted.
	entry.SyncWith(atoms.RemoteState{Value: rawJSON(t, "remote"), Version: 3, OriginID: "bbb"})
	assert.Equal(t, "remote", entry.Get())

	other := quietManager(atoms.WithOriginID("bbb"))
	otherStorage := newCountingStorage()
	require.NoError(t, otherStorage.SetItem("flag", `{"value":"local","version":3,"originId":"bbb"}`))
	peer, err := atoms.Acquire(other, atoms.Config[string]{Key: "flag", DefaultValue: ""}, otherStorage)
	require.NoError(t, err)

	// Remote "aaa" sorts before local "bbb": ignored. Both tabs converge on
	// the "bbb" write.
	peer.SyncWith(atoms.RemoteState{Value: rawJSON(t, "remote"), Version: 3, OriginID: "aaa"})
	assert.Equal(t, "local", peer.Get())
}

func TestSyncWithIsIdempotent(t *testing.T) {
	m := quietManager(atoms.WithOriginID("tabB"))
	entry, err := atoms.Acquire(m, atoms.Config[int]{Key: "counter", DefaultValue: 0}, newCountingStorage())
	require.NoError(t, err)

	remote := atoms.RemoteState{Value: rawJSON(t, 7), Version: 3, OriginID: "tabA"}
	entry.SyncWith(remote)
	require.Equal(t, 7, entry.Get())
	require.Equal(t, uint64(3), entry.Version())

	// Re-delivery: versions now match and the origin tie-break fails
	// symmetrically against itself.
	entry.SyncWith(remote)
	assert.Equal(t, 7, entry.Get())
	assert.Equal(t, uint64(3), entry.Version())
}

func TestSyncWithMergeIsOrderIndependent(t *testing.T) {
	remoteA := atoms.RemoteState{Value: json.RawMessage(`"a"`), Version: 4, OriginID: "tabA"}
	remoteC := atoms.RemoteState{Value: json.RawMessage(`"c"`), Version: 4, OriginID: "tabC"}

	run := func(order ...atoms.RemoteState) string {
		m := quietManager(atoms.WithOriginID("tabB"))
		entry, err := atoms.Acquire(m, atoms.Config[string]{Key: "flag", DefaultValue: ""}, newCountingStorage())
		require.NoError(t, err)
		for _, remote := range order {
			entry.SyncWith(remote)
		}
		return entry.Get()
	}

	first := run(remoteA, remoteC)
	second := run(remoteC, remoteA)
	assert.Equal(t, first, second, "merge outcome is a pure function of the conflicting pair")
	assert.Equal(t, "c", first, "the origin sorting last wins the tie")
}

func TestSyncWithDoesNotRetriggerStorageWrite(t *testing.T) {
	m := quietManager(atoms.WithOriginID("tabB"))
	storage := newCountingStorage()
	entry, err := atoms.Acquire(m, atoms.Config[int]{Key: "counter", DefaultValue: 0}, storage)
	require.NoError(t, err)

	entry.Mount()
	defer entry.Unmount()

	entry.SyncWith(atoms.RemoteState{Value: rawJSON(t, 7), Version: 3, OriginID: "tabA"})
	entry.Flush()
	assert.Zero(t, storage.writeCount(), "accepted state already matches storage")

	entry.Set(8)
	entry.Flush()
	assert.Equal(t, 1, storage.writeCount())
	raw, ok := storage.GetItem("counter")
	require.True(t, ok)
	remote, parseErr := atoms.ParseRemoteState(raw)
	require.NoError(t, parseErr)
	assert.Equal(t, uint64(4), remote.Version, "local writes continue from the merged version")
}

func TestLifecycleHooksObserveWritesAndMerges(t *testing.T) {
	var kinds []events.Kind
	m := quietManager(
		atoms.WithOriginID("tabB"),
		atoms.WithHooks(events.HookFunc(func(event events.Event) error {
			kinds = append(kinds, event.Kind)
			return nil
		})),
	)
	entry, err := atoms.Acquire(m, atoms.Config[int]{Key: "counter", DefaultValue: 0}, newCountingStorage())
	require.NoError(t, err)

	entry.Mount()
	entry.Set(1)
	entry.Flush()
	entry.Unmount()

	entry.SyncWith(atoms.RemoteState{Value: rawJSON(t, 9), Version: 5, OriginID: "tabA"})
	entry.SyncWith(atoms.RemoteState{Value: rawJSON(t, 2), Version: 1, OriginID: "tabA"})

	assert.Equal(t, []events.Kind{events.KindWrite, events.KindSyncAccept, events.KindSyncReject}, kinds)
}

func TestSignalPanicsOnNilEntry(t *testing.T) {
	var entry *atoms.Entry[int]
	assert.PanicsWithValue(t, atoms.ErrNotInitialized, func() { entry.Signal() })
}
