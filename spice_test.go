package halorbits

import (
	"errors"
	"os/exec"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// fakeOracle answers the helper protocol with canned replies.
const fakeOracle = `
while IFS= read -r line; do
  case "$line" in
    furnsh*missing*) echo "error: no such file" ;;
    furnsh*) echo ok ;;
    cover*NOWHERE*) echo "[]" ;;
    cover*) echo "[0.0, 86400.0]" ;;
    state*) echo "[1, 2, 3, 0.4, 0.5, 0.6]" ;;
    et2utc*) echo "2000 JAN 01 12:00:00" ;;
    str2et*garbage*) echo "garbage" ;;
    str2et*) echo "[64.184]" ;;
    *) echo "garbage" ;;
  esac
done
`

func newFakeSPICE(t *testing.T, script string) *SPICE {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no shell available")
	}
	s, err := startSPICE(exec.Command("sh", "-c", script), nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSPICEProtocol(t *testing.T) {
	s := newFakeSPICE(t, fakeOracle)
	if err := s.Furnsh("kernels/de432s.bsp"); err != nil {
		t.Fatal(err)
	}
	if err := s.Furnsh("kernels/missing.bsp"); !errors.Is(err, ErrOracle) {
		t.Fatalf("expected ErrOracle, got %v", err)
	}
	w, err := s.Coverage("kernels/de432s.bsp", "-170")
	if err != nil {
		t.Fatal(err)
	}
	if w != (Window{0, 86400}) {
		t.Fatalf("window = %+v", w)
	}
	if _, err := s.Coverage("kernels/de432s.bsp", "NOWHERE"); !errors.Is(err, ErrNoCoverage) {
		t.Fatalf("expected ErrNoCoverage, got %v", err)
	}
	st, err := s.State("MOON", 0, "J2000", "EARTH")
	if err != nil {
		t.Fatal(err)
	}
	if st.R != (r3.Vec{X: 1, Y: 2, Z: 3}) || st.V != (r3.Vec{X: 0.4, Y: 0.5, Z: 0.6}) {
		t.Fatalf("state = %+v", st)
	}
	utc, err := s.ET2UTC(64.184)
	if err != nil || utc != "2000 JAN 01 12:00:00" {
		t.Fatalf("utc = %s (%v)", utc, err)
	}
	et, err := s.UTC2ET("2000-01-01T12:00:00")
	if err != nil || et != 64.184 {
		t.Fatalf("et = %f (%v)", et, err)
	}
	if _, err := s.UTC2ET("garbage please"); !errors.Is(err, ErrOracle) {
		t.Fatalf("malformed reply accepted: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal("second close failed")
	}
	if _, err := s.ET2UTC(0); !errors.Is(err, ErrOracle) {
		t.Fatalf("query after close: %v", err)
	}
}

func TestSPICEDeadHelper(t *testing.T) {
	s := newFakeSPICE(t, "exit 0")
	if _, err := s.State("MOON", 0, "J2000", "EARTH"); !errors.Is(err, ErrOracle) {
		t.Fatalf("expected ErrOracle, got %v", err)
	}
	s.Close()
}

func TestParseVector(t *testing.T) {
	vals, err := parseVector(" [1.5, -2e3,3] ")
	if err != nil || len(vals) != 3 || vals[1] != -2000 {
		t.Fatalf("vals = %v (%v)", vals, err)
	}
	if vals, err := parseVector("[]"); err != nil || len(vals) != 0 {
		t.Fatalf("empty vector: %v %v", vals, err)
	}
	for _, bad := range []string{"", "1,2", "[1,a]", "ok"} {
		if _, err := parseVector(bad); !errors.Is(err, ErrOracle) {
			t.Fatalf("`%s` accepted", bad)
		}
	}
}
