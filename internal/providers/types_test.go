package providers

import "testing"

func TestCompletion_Reply(t *testing.T) {
	t.Run("reply_text wins", func(t *testing.T) {
		c := &Completion{ReplyText: "new", ReplyToUser: "old"}
		if c.Reply() != "new" {
			t.Errorf("reply = %q", c.Reply())
		}
	})
	t.Run("legacy fallback", func(t *testing.T) {
		c := &Completion{ReplyToUser: "old"}
		if c.Reply() != "old" {
			t.Errorf("reply = %q", c.Reply())
		}
	})
	t.Run("placeholder", func(t *testing.T) {
		c := &Completion{}
		if c.Reply() != "..." {
			t.Errorf("reply = %q", c.Reply())
		}
	})
}

func TestCompletion_ResolvedIntent(t *testing.T) {
	cases := []struct {
		name string
		c    Completion
		want string
	}{
		{"explicit intent", Completion{Intent: "muon_mua", Analysis: &Analysis{SubTopic: "can_ho"}}, "muon_mua"},
		{"sub_topic fallback", Completion{Analysis: &Analysis{SubTopic: "can_ho"}}, "can_ho"},
		{"default", Completion{}, "general_inquiry"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.c.ResolvedIntent(); got != tc.want {
				t.Errorf("intent = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCompletion_NilSubObjects(t *testing.T) {
	c := &Completion{}
	if c.SubTopic() != "" || c.BehaviorNotes() != "" {
		t.Error("nil analysis should yield empty strings")
	}
	if c.DetectedPhone() != "" || c.DetectedEmail() != "" {
		t.Error("nil detected_info should yield empty strings")
	}
}

func TestCompletion_ProposedState(t *testing.T) {
	if (&Completion{}).ProposedState() != "" {
		t.Error("absent next_state should propose nothing")
	}
	if (&Completion{NextState: "DEFAULT"}).ProposedState() != "" {
		t.Error("DEFAULT next_state should propose nothing")
	}
	if got := (&Completion{NextState: "ASK_PHONE"}).ProposedState(); got != "ASK_PHONE" {
		t.Errorf("proposed = %q", got)
	}
}

func TestParseCompletion(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		c, err := ParseCompletion(`{"reply_text":"chào anh","classification":"vip","tags":["vip"]}`)
		if err != nil {
			t.Fatal(err)
		}
		if c.Reply() != "chào anh" || c.Classification != "vip" {
			t.Errorf("completion = %+v", c)
		}
	})

	t.Run("fenced json", func(t *testing.T) {
		c, err := ParseCompletion("```json\n{\"reply_text\":\"ok\"}\n```")
		if err != nil {
			t.Fatal(err)
		}
		if c.Reply() != "ok" {
			t.Errorf("reply = %q", c.Reply())
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := ParseCompletion("not json at all"); err == nil {
			t.Error("expected parse error")
		}
	})
}
