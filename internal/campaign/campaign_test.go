package campaign

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestNormalizePhone(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw, cc, want string
	}{
		{"0812-3456-789", "62", "628123456789"},
		{"+62 812 3456 789", "62", "628123456789"},
		{"8123456789", "62", "628123456789"},
		{"628123456789", "62", "628123456789"},
		{"(0) 812", "", "0812"},
		{"abc", "62", ""},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.raw, tt.cc); got != tt.want {
			t.Fatalf("NormalizePhone(%q, %q) = %q, want %q", tt.raw, tt.cc, got, tt.want)
		}
	}
}

func TestFromRowsAliasesAndSkips(t *testing.T) {
	t.Parallel()
	rows := []map[string]string{
		{"nama": "Ani", "nomor": "0812 345"},
		{"Name": "Budi", "phone": "62899", "group": "2"},
		{"nama": "", "nomor": "0811"},
		{"nama": "Citra"},
		{"NAMA": "Dewi", "Nomor": "0813"},
	}
	got := FromRows(rows, LoadOptions{CountryCode: "62", RequireName: true})
	want := []Recipient{
		{Destination: "62812345", Name: "Ani", Group: "1"},
		{Destination: "62899", Name: "Budi", Group: "2"},
		{Destination: "62813", Name: "Dewi", Group: "1"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d recipients, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("recipient %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestNormalizeLeavesEmailsAlone(t *testing.T) {
	t.Parallel()
	got := Normalize([]Recipient{{Destination: " a@example.com ", Name: "A"}}, LoadOptions{CountryCode: "62"})
	if got[0].Destination != "a@example.com" || got[0].Group != DefaultGroup {
		t.Fatalf("got %+v", got[0])
	}
}

func TestNormalizeLeavesChatIDsAlone(t *testing.T) {
	t.Parallel()
	in := []Recipient{
		{Destination: "-1001234567890", Name: "Group"},
		{Destination: "@news", Name: "Channel"},
		{Destination: "0812-3456-789", Name: "Phone"},
	}
	got := Normalize(in, LoadOptions{CountryCode: "62"})
	want := []string{"-1001234567890", "@news", "628123456789"}
	for i, w := range want {
		if got[i].Destination != w {
			t.Fatalf("destination[%d] = %q, want %q", i, got[i].Destination, w)
		}
	}
}

func TestLoadFileFormats(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "list.csv")
	writeFile(t, csvPath, "email,name,group\na@example.com,Ann,1\nb@example.com,Bob,2\n,Nobody,1\n")

	jsonPath := filepath.Join(dir, "list.json")
	writeFile(t, jsonPath, `[{"nama":"Ani","nomor":8123456789},{"nama":"Budi","nomor":"0812"}]`)

	yamlPath := filepath.Join(dir, "list.yaml")
	writeFile(t, yamlPath, "- email: c@example.com\n  name: Cat\n")

	xlsxPath := filepath.Join(dir, "list.xlsx")
	f := excelize.NewFile()
	for cell, v := range map[string]string{"A1": "nama", "B1": "nomor", "A2": "Ani", "B2": "0812", "A3": "Budi", "B3": "0813"} {
		if err := f.SetCellValue("Sheet1", cell, v); err != nil {
			t.Fatalf("SetCellValue: %v", err)
		}
	}
	if err := f.SaveAs(xlsxPath); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	_ = f.Close()

	tests := []struct {
		path  string
		opts  LoadOptions
		dests []string
	}{
		{csvPath, LoadOptions{}, []string{"a@example.com", "b@example.com"}},
		{jsonPath, LoadOptions{CountryCode: "62"}, []string{"628123456789", "62812"}},
		{yamlPath, LoadOptions{}, []string{"c@example.com"}},
		{xlsxPath, LoadOptions{CountryCode: "62"}, []string{"62812", "62813"}},
	}
	for _, tt := range tests {
		got, err := LoadFile(tt.path, tt.opts)
		if err != nil {
			t.Fatalf("LoadFile(%s): %v", filepath.Base(tt.path), err)
		}
		var dests []string
		for _, r := range got {
			dests = append(dests, r.Destination)
		}
		if strings.Join(dests, ",") != strings.Join(tt.dests, ",") {
			t.Fatalf("LoadFile(%s) = %v, want %v", filepath.Base(tt.path), dests, tt.dests)
		}
	}

	if _, err := LoadFile(filepath.Join(dir, "list.txt"), LoadOptions{}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestRenderHTMLEscapesRecipientData(t *testing.T) {
	t.Parallel()
	r, err := NewRenderer(Definition{
		Name:    "mentoring",
		Subject: "Invitation for {{.Name}}",
		Sender:  "Academic Team",
		HTML:    `<p>Hello {{.Name}}, group {{.Group}} at {{.Params.time}}</p>`,
		Text:    "Hello {{.Name}}",
		Params:  map[string]string{"time": "14:00"},
	})
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	env, err := r.Render(Recipient{Destination: "a@example.com", Name: "<Ann>", Group: "2"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if env.Subject != "Invitation for <Ann>" {
		t.Fatalf("Subject = %q", env.Subject)
	}
	if env.Body != "<p>Hello &lt;Ann&gt;, group 2 at 14:00</p>" {
		t.Fatalf("Body = %q", env.Body)
	}
	if env.Text != "Hello <Ann>" || env.Destination != "a@example.com" {
		t.Fatalf("env = %+v", env)
	}
}

func TestRenderDefaultTemplate(t *testing.T) {
	t.Parallel()
	r, err := NewRenderer(Definition{Subject: "Weekly update", Sender: "Team", Params: map[string]string{"body": "See you soon"}})
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	env, err := r.Render(Recipient{Destination: "a@example.com", Name: "Ann"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"Hi Ann", "See you soon", "<title>Weekly update</title>"} {
		if !strings.Contains(env.Body, want) {
			t.Fatalf("body missing %q", want)
		}
	}
}

func TestRenderStrictMissingParam(t *testing.T) {
	t.Parallel()
	r, err := NewRenderer(Definition{Subject: "x", Text: "at {{.Params.when}}", Format: FormatText, Strict: true})
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	if _, err := r.Render(Recipient{Destination: "1"}); err == nil {
		t.Fatal("expected error for missing param")
	}
}

func TestNewRendererRejectsBadTemplates(t *testing.T) {
	t.Parallel()
	if _, err := NewRenderer(Definition{Subject: "{{.Name"}); err == nil {
		t.Fatal("expected subject parse error")
	}
	if _, err := NewRenderer(Definition{Format: FormatText}); err == nil {
		t.Fatal("expected error for text format without text template")
	}
	if _, err := NewRenderer(Definition{Format: "pdf"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
