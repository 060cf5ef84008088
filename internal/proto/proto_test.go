package proto

import "testing"

func TestParseDispatchesLongestVerbFirst(t *testing.T) {
	cases := []struct {
		command  string
		wantVerb string
		wantArgs []string
	}{
		{"IDENTITY box1", VerbIdentity, []string{"box1"}},
		{"CONFIRM SYNCHRONIZE 42", VerbConfirmSync, []string{"42"}},
		{"REJECT RENDER -3", VerbRejectRender, []string{"-3"}},
		{"COMPLETE RENDER 5", VerbCompleteRender, []string{"5"}},
		{"CONFIRM CANCEL", VerbConfirmCancel, nil},
		{"CANCEL", VerbCancel, nil},
		{"REJECT UPLOAD 7", VerbRejectUpload, []string{"7"}},
		{"COMPLETE UPLOAD 5 5.png", VerbCompleteUpload, []string{"5", "5.png"}},
		{"CLEANUP", VerbCleanup, nil},
		{"GARBAGE", "", nil},
	}
	for _, tc := range cases {
		got := Parse(tc.command)
		if got.Verb != tc.wantVerb {
			t.Errorf("Parse(%q).Verb = %q, want %q", tc.command, got.Verb, tc.wantVerb)
		}
		if len(got.Args) != len(tc.wantArgs) {
			t.Errorf("Parse(%q).Args = %v, want %v", tc.command, got.Args, tc.wantArgs)
			continue
		}
		for i := range got.Args {
			if got.Args[i] != tc.wantArgs[i] {
				t.Errorf("Parse(%q).Args[%d] = %q, want %q", tc.command, i, got.Args[i], tc.wantArgs[i])
			}
		}
	}
}

func TestRenderRoundTrip(t *testing.T) {
	cmd := NewRequestRender(42)
	msg := Parse(string(cmd))
	frame, ok := ParseRequestRender(msg)
	if !ok || frame != 42 {
		t.Fatalf("got (%d,%v), want (42,true)", frame, ok)
	}
}

func TestCompleteUploadRoundTrip(t *testing.T) {
	cmd := NewCompleteUpload(5, "5.png")
	msg := Parse(string(cmd))
	frame, filename, ok := ParseCompleteUpload(msg)
	if !ok || frame != 5 || filename != "5.png" {
		t.Fatalf("got (%d,%q,%v), want (5,\"5.png\",true)", frame, filename, ok)
	}
}

func TestParseRejectsMalformedFrame(t *testing.T) {
	msg := Parse("RENDER abc")
	if _, ok := ParseRequestRender(msg); ok {
		t.Fatal("expected ok=false for non-numeric frame")
	}
}
