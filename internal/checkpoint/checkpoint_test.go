package checkpoint

import (
	"path/filepath"
	"testing"

	"copytask/internal/model"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	net, err := model.NewNetwork(model.CellBRC, 1, []int{4}, 3)
	if err != nil {
		t.Fatalf("NewNetwork error: %v", err)
	}
	opt := model.NewAdam(net.Params(), 0.01)

	path := filepath.Join(t.TempDir(), "BRC_5.ckpt")
	st := Capture(model.CellBRC, 5, 7, 0.4, 0.3, net.Params(), opt.State())
	if err := Save(path, st); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.Cell != model.CellBRC || got.Lag != 5 || got.Epoch != 7 {
		t.Fatalf("unexpected metadata: %+v", got)
	}
	if got.TrainLoss != 0.4 || got.TestLoss != 0.3 {
		t.Fatalf("unexpected losses: %+v", got)
	}

	// clobber the live parameters, then restore from the snapshot
	want := make([][]float64, len(net.Params()))
	for i, p := range net.Params() {
		want[i] = append([]float64(nil), p.RawMatrix().Data...)
		p.Zero()
	}
	if err := got.Apply(net.Params()); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	for i, p := range net.Params() {
		data := p.RawMatrix().Data
		for k := range data {
			if data[k] != want[i][k] {
				t.Fatalf("param %d[%d] not restored: %g vs %g", i, k, data[k], want[i][k])
			}
		}
	}
}

func TestSaveOverwrites(t *testing.T) {
	net, err := model.NewNetwork(model.CellGRU, 1, []int{3}, 1)
	if err != nil {
		t.Fatalf("NewNetwork error: %v", err)
	}
	opt := model.NewAdam(net.Params(), 0.01)
	path := filepath.Join(t.TempDir(), "GRU_5.ckpt")

	if err := Save(path, Capture(model.CellGRU, 5, 1, 1, 1, net.Params(), opt.State())); err != nil {
		t.Fatalf("first Save error: %v", err)
	}
	if err := Save(path, Capture(model.CellGRU, 5, 2, 0.5, 0.5, net.Params(), opt.State())); err != nil {
		t.Fatalf("second Save error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.Epoch != 2 || got.TestLoss != 0.5 {
		t.Fatalf("expected the newer snapshot, got %+v", got)
	}
}

func TestApplyRejectsShapeMismatch(t *testing.T) {
	net, err := model.NewNetwork(model.CellGRU, 1, []int{3}, 1)
	if err != nil {
		t.Fatalf("NewNetwork error: %v", err)
	}
	other, err := model.NewNetwork(model.CellGRU, 1, []int{5}, 1)
	if err != nil {
		t.Fatalf("NewNetwork error: %v", err)
	}
	opt := model.NewAdam(net.Params(), 0.01)
	st := Capture(model.CellGRU, 5, 1, 1, 1, net.Params(), opt.State())
	if err := st.Apply(other.Params()); err == nil {
		t.Fatal("expected error for mismatched shapes")
	}
}
