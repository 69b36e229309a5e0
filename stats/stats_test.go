package stats

import (
	"testing"

	"github.com/Readm/mesisim/core"
)

func TestRecordAccessSplitsReadsAndWrites(t *testing.T) {
	st := New(2)
	st.RecordAccess(0, core.OpRead)
	st.RecordAccess(0, core.OpRead)
	st.RecordAccess(0, core.OpWrite)

	pc := st.PerCore(0)
	if pc.ReadInstructions != 2 {
		t.Errorf("ReadInstructions = %d, want 2", pc.ReadInstructions)
	}
	if pc.WriteInstructions != 1 {
		t.Errorf("WriteInstructions = %d, want 1", pc.WriteInstructions)
	}
	if pc.CacheAccesses != 3 {
		t.Errorf("CacheAccesses = %d, want 3", pc.CacheAccesses)
	}
}

func TestMissRatePercent(t *testing.T) {
	st := New(1)
	for i := 0; i < 4; i++ {
		st.RecordAccess(0, core.OpRead)
	}
	st.RecordMiss(0)

	got := st.MissRatePercent(0)
	if want := 25.0; got != want {
		t.Errorf("MissRatePercent() = %v, want %v", got, want)
	}
}

func TestMissRatePercentWithNoAccessesIsZero(t *testing.T) {
	st := New(1)
	if got := st.MissRatePercent(0); got != 0 {
		t.Errorf("MissRatePercent() = %v, want 0", got)
	}
}

func TestAddBusTrafficAttributesToCoreAndTotal(t *testing.T) {
	st := New(2)
	st.AddBusTraffic(64, 1)
	st.AddBusTraffic(32, 1)

	if st.TotalBusTrafficBytes != 96 {
		t.Errorf("TotalBusTrafficBytes = %d, want 96", st.TotalBusTrafficBytes)
	}
	if got := st.PerCore(1).DataTrafficBytes; got != 96 {
		t.Errorf("core 1 DataTrafficBytes = %d, want 96", got)
	}
	if got := st.PerCore(0).DataTrafficBytes; got != 0 {
		t.Errorf("core 0 DataTrafficBytes = %d, want 0", got)
	}
}

func TestRecordInvalidationReceivedUpdatesCoreAndGlobal(t *testing.T) {
	st := New(2)
	st.RecordInvalidationReceived(0)
	st.RecordInvalidationReceived(1)

	if st.TotalInvalidations != 2 {
		t.Errorf("TotalInvalidations = %d, want 2", st.TotalInvalidations)
	}
	if st.PerCore(0).InvalidationsReceived != 1 {
		t.Errorf("core 0 InvalidationsReceived = %d, want 1", st.PerCore(0).InvalidationsReceived)
	}
}

func TestOutOfRangeCoreIDsAreIgnoredSafely(t *testing.T) {
	st := New(1)
	st.RecordAccess(5, core.OpRead)
	st.RecordMiss(-1)
	st.IncrementStallCycles(99)
	st.SetCoreCycles(5, 100)

	if got := st.PerCore(5); got != (PerCore{}) {
		t.Errorf("PerCore(5) should be zero value for an unallocated core, got %+v", got)
	}
}

func TestNumCores(t *testing.T) {
	if got := New(4).NumCores(); got != 4 {
		t.Errorf("NumCores() = %d, want 4", got)
	}
	var nilStats *Stats
	if got := nilStats.NumCores(); got != 0 {
		t.Errorf("nil Stats NumCores() = %d, want 0", got)
	}
}
