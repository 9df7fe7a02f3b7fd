package norms

import (
	"errors"
	"testing"
)

func TestCompute(t *testing.T) {
	base := Profile{Gender: Male, Age: 30, WeightKg: 80, HeightCm: 180, ActivityFactor: 1.55, Goal: Maintenance}

	t.Run("Maintenance", func(t *testing.T) {
		d, err := Compute(base)
		if err != nil {
			t.Fatalf("Compute failed: %v", err)
		}
		want := Daily{Calories: 2759, Proteins: 206.9, Fats: 92.0, Carbs: 275.9}
		if d != want {
			t.Errorf("Expected %+v, got %+v", want, d)
		}
	})

	t.Run("EmptyGoalMeansMaintenance", func(t *testing.T) {
		p := base
		p.Goal = ""
		d, _ := Compute(p)
		if d.Calories != 2759 {
			t.Errorf("Expected 2759 kcal, got %v", d.Calories)
		}
	})

	t.Run("WeightLoss", func(t *testing.T) {
		p := base
		p.Goal = WeightLoss
		d, _ := Compute(p)
		// 2759 * 0.8 = 2207.2
		if d.Calories != 2207.2 {
			t.Errorf("Expected 2207.2 kcal, got %v", d.Calories)
		}
		// 2207.2 * 0.35 / 4 = 193.13
		if d.Proteins != 193.1 {
			t.Errorf("Expected 193.1 g protein, got %v", d.Proteins)
		}
	})

	t.Run("WeightGainFemale", func(t *testing.T) {
		p := Profile{Gender: Female, Age: 25, WeightKg: 60, HeightCm: 165, ActivityFactor: 1.2, Goal: WeightGain}
		// BMR = 600 + 1031.25 - 125 - 161 = 1345.25
		if got := BMR(p); got != 1345.25 {
			t.Fatalf("Expected BMR 1345.25, got %v", got)
		}
		d, _ := Compute(p)
		// 1345.25 * 1.2 * 1.15 = 1856.445
		if d.Calories != 1856.4 {
			t.Errorf("Expected 1856.4 kcal, got %v", d.Calories)
		}
		// 1856.445 * 0.25 / 9 = 51.57
		if d.Fats != 51.6 {
			t.Errorf("Expected 51.6 g fat, got %v", d.Fats)
		}
	})

	t.Run("InvalidProfile", func(t *testing.T) {
		p := base
		p.ActivityFactor = 1.4
		if _, err := Compute(p); !errors.Is(err, ErrInvalidProfile) {
			t.Errorf("Expected ErrInvalidProfile, got %v", err)
		}
	})
}

func TestEffective(t *testing.T) {
	p := Profile{Gender: Male, Age: 30, WeightKg: 80, HeightCm: 180, ActivityFactor: 1.55}

	manual := &Daily{Calories: 1800, Proteins: 120, Fats: 60, Carbs: 190}
	got, err := Effective(p, manual)
	if err != nil {
		t.Fatalf("Effective failed: %v", err)
	}
	if got != *manual {
		t.Errorf("Expected manual targets %+v, got %+v", *manual, got)
	}

	// Manual targets win even without a usable profile.
	if _, err := Effective(Profile{}, manual); err != nil {
		t.Errorf("Expected no error with manual targets, got %v", err)
	}

	computed, _ := Effective(p, nil)
	if computed.Calories != 2759 {
		t.Errorf("Expected computed 2759 kcal, got %v", computed.Calories)
	}
}

func TestValidate(t *testing.T) {
	valid := Profile{Gender: Female, Age: 40, WeightKg: 65.5, HeightCm: 170, ActivityFactor: 1.375, Goal: WeightLoss}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Expected valid profile, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"Gender", func(p *Profile) { p.Gender = "other" }},
		{"TooYoung", func(p *Profile) { p.Age = 11 }},
		{"TooOld", func(p *Profile) { p.Age = 101 }},
		{"TooLight", func(p *Profile) { p.WeightKg = 29.9 }},
		{"TooHeavy", func(p *Profile) { p.WeightKg = 300.1 }},
		{"TooShort", func(p *Profile) { p.HeightCm = 99 }},
		{"TooTall", func(p *Profile) { p.HeightCm = 251 }},
		{"Activity", func(p *Profile) { p.ActivityFactor = 2 }},
		{"Goal", func(p *Profile) { p.Goal = "bulk" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			if err := p.Validate(); !errors.Is(err, ErrInvalidProfile) {
				t.Errorf("Expected ErrInvalidProfile, got %v", err)
			}
		})
	}
}

func TestParsers(t *testing.T) {
	if w, err := ParseWeight("72,5"); err != nil || w != 72.5 {
		t.Errorf("Expected 72.5, got %v (%v)", w, err)
	}
	if _, err := ParseWeight("25"); !errors.Is(err, ErrInvalidProfile) {
		t.Errorf("Expected ErrInvalidProfile for 25 kg, got %v", err)
	}
	if h, err := ParseHeight(" 180 "); err != nil || h != 180 {
		t.Errorf("Expected 180, got %v (%v)", h, err)
	}
	if a, err := ParseAge("30"); err != nil || a != 30 {
		t.Errorf("Expected 30, got %v (%v)", a, err)
	}
	if _, err := ParseAge("30.5"); err == nil {
		t.Error("Expected fractional age to be rejected")
	}
	if f, err := ParseActivityFactor("1,725"); err != nil || f != 1.725 {
		t.Errorf("Expected 1.725, got %v (%v)", f, err)
	}
	if g, err := ParseGender("F"); err != nil || g != Female {
		t.Errorf("Expected female, got %v (%v)", g, err)
	}
	if g, err := ParseGoal("Weight_Gain"); err != nil || g != WeightGain {
		t.Errorf("Expected weight_gain, got %v (%v)", g, err)
	}
	if _, err := ParseGoal("shred"); err == nil {
		t.Error("Expected unknown goal to be rejected")
	}
}

func TestParseDaily(t *testing.T) {
	d, err := ParseDaily(" 2000 150,5 60 210 ")
	if err != nil {
		t.Fatalf("ParseDaily failed: %v", err)
	}
	want := Daily{Calories: 2000, Proteins: 150.5, Fats: 60, Carbs: 210}
	if d != want {
		t.Errorf("Expected %+v, got %+v", want, d)
	}

	for _, in := range []string{"", "2000 150 60", "2000 150 60 abc", "2000 0 60 200", "1 2 3 4 5"} {
		if _, err := ParseDaily(in); !errors.Is(err, ErrInvalidProfile) {
			t.Errorf("ParseDaily(%q): expected ErrInvalidProfile, got %v", in, err)
		}
	}
}
