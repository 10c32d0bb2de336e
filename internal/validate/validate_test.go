package validate

import (
	"testing"

	"next-mission/internal/model"
)

func fullJob() *model.JobListing {
	return &model.JobListing{
		Company:        model.Ptr("Acme"),
		Title:          model.Ptr("Security Officer"),
		Location:       model.Ptr("Austin, TX"),
		Description:    model.Ptr("Protect facilities."),
		Salary:         &model.SalaryRange{From: model.Ptr(50000.0)},
		EmploymentType: model.Ptr("full-time"),
		WorkMode:       model.Ptr("onsite"),
	}
}

func TestJobThreshold(t *testing.T) {
	t.Parallel()

	if d := Job(fullJob()); !d.Accepted {
		t.Fatalf("expected full job accepted, got %q", d.Reason)
	}

	two := fullJob()
	two.Company = nil
	two.Salary = &model.SalaryRange{}
	if d := Job(two); !d.Accepted {
		t.Fatalf("expected job with 2 empty fields accepted, got %q", d.Reason)
	}

	three := fullJob()
	three.Company = nil
	three.Salary = nil
	three.WorkMode = model.Ptr("   ")
	d := Job(three)
	if d.Accepted {
		t.Fatalf("expected job with 3 empty fields rejected")
	}
	if d.Reason == "" {
		t.Fatalf("expected rejection reason")
	}
}

func TestJobIgnoresNonCriticalFields(t *testing.T) {
	t.Parallel()

	j := fullJob()
	j.Tags = nil
	j.PostedDate = nil
	j.URL = ""
	if got := EmptyCriticalFields(j); len(got) != 0 {
		t.Fatalf("expected no empty critical fields, got %v", got)
	}
}

func TestMentorRequiresIdentityFields(t *testing.T) {
	t.Parallel()

	ok := &model.MentorProfile{Name: model.Ptr("Jane"), Title: model.Ptr("Ops Manager"), ProfileURL: "https://www.linkedin.com/in/jane"}
	if d := Mentor(ok); !d.Accepted {
		t.Fatalf("expected mentor accepted, got %q", d.Reason)
	}

	cases := []*model.MentorProfile{
		{Title: model.Ptr("Ops Manager"), ProfileURL: "https://www.linkedin.com/in/jane"},
		{Name: model.Ptr("Jane"), ProfileURL: "https://www.linkedin.com/in/jane"},
		{Name: model.Ptr("Jane"), Title: model.Ptr("Ops Manager")},
		{Name: model.Ptr("   "), Title: model.Ptr("Ops Manager"), ProfileURL: "https://www.linkedin.com/in/jane"},
		{Name: model.Ptr("Jane"), Title: model.Ptr("\t\n"), ProfileURL: "https://www.linkedin.com/in/jane"},
		{Name: model.Ptr("Jane"), Title: model.Ptr("Ops Manager"), ProfileURL: "  "},
	}
	for i, m := range cases {
		if d := Mentor(m); d.Accepted {
			t.Fatalf("case %d: expected rejection", i)
		}
	}

	d := Mentor(&model.MentorProfile{})
	if d.Reason != "missing required fields: name, title, profile_url" {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestMentorBlankFieldsWithoutNormalize(t *testing.T) {
	t.Parallel()

	d := Mentor(&model.MentorProfile{Name: model.Ptr(" "), Title: model.Ptr("Ops Manager"), ProfileURL: "https://www.linkedin.com/in/jane"})
	if d.Accepted {
		t.Fatalf("expected blank name rejected")
	}
	if d.Reason != "missing required fields: name" {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestEventsPassThrough(t *testing.T) {
	t.Parallel()

	if d := Check(&model.CommunityEvent{}); !d.Accepted {
		t.Fatalf("expected sparse event accepted")
	}
}

func TestCheckDispatches(t *testing.T) {
	t.Parallel()

	if d := Check(&model.JobListing{}); d.Accepted {
		t.Fatalf("expected empty job rejected")
	}
	if d := Check(&model.MentorProfile{}); d.Accepted {
		t.Fatalf("expected empty mentor rejected")
	}
}
