package intent

import (
	"testing"
)

func TestClassifyNegative(t *testing.T) {
	res := Classify("No thanks, not interested")

	if res.Intent != Negative {
		t.Errorf("expected %s intent, got %s", Negative, res.Intent)
	}
	if res.Sentiment != SentimentNegative {
		t.Errorf("expected negative sentiment, got %s", res.Sentiment)
	}
	if res.IsQuestion {
		t.Error("expected is_question false")
	}
	if res.Confidence <= 0 {
		t.Errorf("expected positive confidence, got %f", res.Confidence)
	}
}

func TestClassifyPositive(t *testing.T) {
	res := Classify("Yes, that works, go ahead")

	if res.Intent != Positive {
		t.Errorf("expected %s intent, got %s", Positive, res.Intent)
	}
	if res.Sentiment != SentimentPositive {
		t.Errorf("expected positive sentiment, got %s", res.Sentiment)
	}
}

func TestClassifyQuestion(t *testing.T) {
	res := Classify("How does the installation actually work?")

	if !res.IsQuestion {
		t.Error("expected is_question true")
	}
	if res.Intent != Question && res.Intent != RequestInfo {
		t.Errorf("expected question-like intent, got %s", res.Intent)
	}
}

func TestClassifyQuestionWithoutMark(t *testing.T) {
	res := Classify("when can you come out")

	if !res.IsQuestion {
		t.Error("expected interrogative first word to flag a question")
	}
}

func TestClassifyBusy(t *testing.T) {
	res := Classify("Sorry, this is not a good time, call me later")

	if res.Intent != Busy {
		t.Errorf("expected %s intent, got %s", Busy, res.Intent)
	}
}

func TestClassifyFrustrated(t *testing.T) {
	res := Classify("Stop calling me, I'm fed up with this")

	if res.Intent != Frustrated {
		t.Errorf("expected %s intent, got %s", Frustrated, res.Intent)
	}
	if res.Sentiment != SentimentNegative {
		t.Errorf("expected negative sentiment, got %s", res.Sentiment)
	}
}

func TestClassifyUncertain(t *testing.T) {
	res := Classify("hmm maybe, I'm not sure, let me think")

	if res.Intent != Uncertain {
		t.Errorf("expected %s intent, got %s", Uncertain, res.Intent)
	}
	if res.Sentiment != SentimentUncertain {
		t.Errorf("expected uncertain sentiment, got %s", res.Sentiment)
	}
}

func TestClassifyEmpty(t *testing.T) {
	res := Classify("   ")

	if res.Intent != Neutral {
		t.Errorf("expected %s intent for empty input, got %s", Neutral, res.Intent)
	}
	if res.Confidence != 0 {
		t.Errorf("expected zero confidence, got %f", res.Confidence)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	for i := 0; i < 20; i++ {
		res := Classify("no")
		if res.Intent != Negative {
			t.Fatalf("iteration %d: expected stable %s intent, got %s", i, Negative, res.Intent)
		}
	}
}

func TestClassifyFuzzyKeyword(t *testing.T) {
	res := Classify("yess definately")

	if res.Intent != Positive {
		t.Errorf("expected fuzzy positive match, got %s", res.Intent)
	}
}

func TestExtractEntities(t *testing.T) {
	entities := ExtractEntities("Call me at 555-867-5309 or jane@example.com around 3:30 pm on Tuesday, budget is $1,250.00 dollars")

	if got := entities["phones"]; len(got) != 1 || got[0] != "555-867-5309" {
		t.Errorf("expected phone entity, got %v", got)
	}
	if got := entities["emails"]; len(got) != 1 || got[0] != "jane@example.com" {
		t.Errorf("expected email entity, got %v", got)
	}
	if got := entities["times"]; len(got) != 1 {
		t.Errorf("expected time entity, got %v", got)
	}
	if got := entities["dates"]; len(got) != 1 || got[0] != "Tuesday" {
		t.Errorf("expected date entity, got %v", got)
	}
	found := false
	for _, a := range entities["amounts"] {
		if a == "1,250.00" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected amount 1,250.00 among %v", entities["amounts"])
	}
}

func TestExtractEntitiesPotentialNames(t *testing.T) {
	entities := ExtractEntities("My name is Jane Smith")

	names := entities["potential_names"]
	if len(names) != 2 || names[0] != "Jane" || names[1] != "Smith" {
		t.Errorf("expected [Jane Smith], got %v", names)
	}
}

func TestExtractEntitiesNone(t *testing.T) {
	if entities := ExtractEntities("nothing to see here"); entities != nil {
		t.Errorf("expected nil entities, got %v", entities)
	}
}

func TestSecondaryIntents(t *testing.T) {
	res := Classify("stop calling me, take me off your list, don't call again, I'm fed up and sick of this, how many times, so annoying and ridiculous, you are harassing me")

	if res.Intent != Frustrated {
		t.Fatalf("expected %s, got %s", Frustrated, res.Intent)
	}
	if _, ok := res.AllIntents[Frustrated]; !ok {
		t.Error("expected primary intent present in all_intents")
	}
	for label, score := range res.AllIntents {
		if label != res.Intent && score < 0.5 {
			t.Errorf("secondary intent %s below threshold: %f", label, score)
		}
	}
}

func TestKeywords(t *testing.T) {
	kws := Keywords(Busy)
	if len(kws) == 0 {
		t.Fatal("expected busy vocabulary")
	}
	if Keywords("NOPE") != nil {
		t.Error("expected nil for unknown label")
	}
}

func TestLabels(t *testing.T) {
	labels := Labels()
	if len(labels) != 9 {
		t.Fatalf("expected 9 labels, got %d", len(labels))
	}
	if labels[len(labels)-1] != Neutral {
		t.Errorf("expected %s last, got %s", Neutral, labels[len(labels)-1])
	}
}

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords("I was just wondering about the pricing for the pricing plan")
	want := []string{"wondering", "about", "pricing", "plan"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keyword %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if kws := ExtractKeywords("I am"); kws != nil {
		t.Errorf("expected no keywords, got %v", kws)
	}
}
