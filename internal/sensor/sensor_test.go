package sensor

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSysfs(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIIORead(t *testing.T) {
	dir := t.TempDir()
	r := &IIOReader{
		TempPath:     writeSysfs(t, dir, "temp", "21340\n"),
		HumidityPath: writeSysfs(t, dir, "hum", "48200\n"),
	}
	got, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.TemperatureC != 21.34 {
		t.Errorf("temp = %v, want 21.34", got.TemperatureC)
	}
	if got.HumidityPct != 48.2 {
		t.Errorf("humidity = %v, want 48.2", got.HumidityPct)
	}
}

func TestIIOAllZeroIsFailure(t *testing.T) {
	dir := t.TempDir()
	r := &IIOReader{
		TempPath:     writeSysfs(t, dir, "temp", "0\n"),
		HumidityPath: writeSysfs(t, dir, "hum", "0\n"),
	}
	if _, err := r.Read(); err == nil {
		t.Fatal("all-zero reading accepted")
	}
}

func TestIIOZeroTempAloneIsValid(t *testing.T) {
	// 0°C is a perfectly good winter reading as long as humidity is live.
	dir := t.TempDir()
	r := &IIOReader{
		TempPath:     writeSysfs(t, dir, "temp", "0\n"),
		HumidityPath: writeSysfs(t, dir, "hum", "80000\n"),
	}
	got, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.TemperatureC != 0 || got.HumidityPct != 80 {
		t.Errorf("got %+v", got)
	}
}

func TestIIOMissingFile(t *testing.T) {
	r := &IIOReader{TempPath: "/nonexistent/temp", HumidityPath: "/nonexistent/hum"}
	if _, err := r.Read(); err == nil {
		t.Fatal("expected error")
	}
}
