package catalog

import (
	"errors"
	"reflect"
	"testing"
	"testing/fstest"
)

func TestLoadText(t *testing.T) {
	fsys := fstest.MapFS{
		"platforms.txt": {Data: []byte("# consoles\nnes\n  snes  \n\nn64 # cartridge\n")},
	}
	ids, err := Load(fsys, "platforms.txt")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if want := []string{"nes", "snes", "n64"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("got %v want %v", ids, want)
	}
}

func TestLoadYAMLForms(t *testing.T) {
	fsys := fstest.MapFS{
		"list.yaml":  {Data: []byte("- psx\n- ps2\n")},
		"keyed.yml":  {Data: []byte("platforms:\n  - saturn\n  - dreamcast\n")},
		"scalar.yml": {Data: []byte("just-a-string\n")},
	}
	ids, err := Load(fsys, "list.yaml")
	if err != nil || !reflect.DeepEqual(ids, []string{"psx", "ps2"}) {
		t.Fatalf("list.yaml: ids=%v err=%v", ids, err)
	}
	ids, err = Load(fsys, "keyed.yml")
	if err != nil || !reflect.DeepEqual(ids, []string{"saturn", "dreamcast"}) {
		t.Fatalf("keyed.yml: ids=%v err=%v", ids, err)
	}
	if _, err := Load(fsys, "scalar.yml"); err == nil {
		t.Fatalf("expected scalar yaml to be rejected")
	}
}

func TestLoadEmptyIsNotAnError(t *testing.T) {
	fsys := fstest.MapFS{
		"empty.txt":  {Data: []byte("# nothing yet\n")},
		"empty.yaml": {Data: []byte("")},
	}
	for _, name := range []string{"empty.txt", "empty.yaml"} {
		ids, err := Load(fsys, name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(ids) != 0 {
			t.Fatalf("%s: expected no ids, got %v", name, ids)
		}
	}
}

func TestLoadRejectsDuplicatesAndInvalidIDs(t *testing.T) {
	fsys := fstest.MapFS{
		"dup.txt":   {Data: []byte("nes\nsnes\nnes\n")},
		"slash.txt": {Data: []byte("sega/saturn\n")},
		"space.yml": {Data: []byte("- \"game boy\"\n")},
	}
	if _, err := Load(fsys, "dup.txt"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("dup.txt: expected ErrDuplicate, got %v", err)
	}
	if _, err := Load(fsys, "slash.txt"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("slash.txt: expected ErrInvalidID, got %v", err)
	}
	if _, err := Load(fsys, "space.yml"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("space.yml: expected ErrInvalidID, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(fstest.MapFS{}, "nope.txt"); err == nil {
		t.Fatalf("expected error for missing catalog")
	}
}
