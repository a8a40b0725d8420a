package engine

import "testing"

func TestScore_Values(t *testing.T) {
	cases := []struct {
		name           string
		phone, email   string
		stage          Stage
		classification string
		want           int
	}{
		{"floor", "", "", StageNew, "", 10},
		{"contact only", "0987654321", "", StageNew, "", 60},
		{"email counts as contact", "", "a@b.com", StageNew, "", 60},
		{"qualified bonus", "", "", StageQualified, "", 15},
		{"warm bonus", "", "", StageWarm, "", 20},
		{"hot bonus", "", "", StageHot, "", 30},
		{"pain marker", "", "", StageNew, "nghien_nang", 25},
		{"vip marker", "", "", StageNew, "vip", 30},
		{"stress marker", "", "", StageNew, "stress", 20},
		{"markers additive", "", "", StageNew, "vip_nghien_nang_stress", 55},
		{"case insensitive", "", "", StageNew, "VIP", 30},
		{"clamp at 100", "0987654321", "a@b.com", StageHot, "vip_nghien_nang_stress", 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.phone, tc.email, tc.stage, tc.classification)
			if got != tc.want {
				t.Errorf("Score = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestScore_Monotonic(t *testing.T) {
	stages := []Stage{StageNew, StageQualified, StageWarm, StageHot}
	classes := []string{"", "unknown", "stress", "vip", "nghien_nang_vip"}

	for _, cls := range classes {
		prev := -1
		for _, stage := range stages {
			s := Score("", "", stage, cls)
			if s < prev {
				t.Errorf("stage escalation lowered score: %s/%s %d < %d", stage, cls, s, prev)
			}
			prev = s

			// adding contact info never decreases the result
			if with := Score("0987654321", "", stage, cls); with < s {
				t.Errorf("adding phone lowered score: %d < %d", with, s)
			}
		}
	}
}

func TestScore_Bounds(t *testing.T) {
	stages := []Stage{StageNew, StageQualified, StageWarm, StageHot}
	phones := []string{"", "0987654321"}
	classes := []string{"", "vip_nghien_nang_stress"}
	for _, stage := range stages {
		for _, phone := range phones {
			for _, cls := range classes {
				s := Score(phone, "", stage, cls)
				if s < 10 || s > 100 {
					t.Errorf("Score(%q,%q,%s) = %d out of [10,100]", phone, cls, stage, s)
				}
			}
		}
	}
}

func TestDeriveStage(t *testing.T) {
	cases := []struct {
		name                          string
		classification, intent        string
		phone, email                  string
		want                          Stage
	}{
		{"nothing known", "", "", "", "", StageNew},
		{"unknown classification stays new", "unknown", "", "", "", StageNew},
		{"classified", "vip", "", "", "", StageQualified},
		{"warm classification", "warm_lead", "", "", "", StageWarm},
		{"buy intent", "vip", "muon_mua_ngay", "", "", StageWarm},
		{"contact wins", "vip", "", "0987654321", "", StageHot},
		{"email also hot", "", "", "", "a@b.com", StageHot},
		{"contact without classification", "", "", "0987654321", "", StageHot},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveStage(tc.classification, tc.intent, tc.phone, tc.email)
			if got != tc.want {
				t.Errorf("stage = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDeriveStage_Idempotent(t *testing.T) {
	// recomputing from the same inputs yields the same stage
	inputs := [][4]string{
		{"vip", "muon_mua", "", ""},
		{"", "", "0987654321", ""},
		{"unknown", "general_inquiry", "", ""},
	}
	for _, in := range inputs {
		first := DeriveStage(in[0], in[1], in[2], in[3])
		second := DeriveStage(in[0], in[1], in[2], in[3])
		if first != second {
			t.Errorf("DeriveStage(%v) not idempotent: %s then %s", in, first, second)
		}
	}
}
