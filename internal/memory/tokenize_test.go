package memory

import (
	"reflect"
	"testing"
)

func TestTokenizeEnglish(t *testing.T) {
	got := Tokenize("The Quick brown Fox a")
	want := []string{"the", "quick", "brown", "fox"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTokenizeMixedCJK(t *testing.T) {
	got := Tokenize("部署 Kubernetes 集群")
	for _, tok := range []string{"部", "署", "kubernetes", "集", "群"} {
		found := false
		for _, g := range got {
			if g == tok {
				found = true
			}
		}
		if !found {
			t.Fatalf("token %q missing from %v", tok, got)
		}
	}
}

func TestTokenizeDropsCJKPunctuation(t *testing.T) {
	for _, tok := range Tokenize("你好。世界！") {
		if tok == "。" || tok == "！" {
			t.Fatalf("punctuation token leaked: %v", tok)
		}
	}
}

func TestJaccard(t *testing.T) {
	a := TokenSet("deploy the cluster")
	b := TokenSet("deploy the service")
	got := Jaccard(a, b)
	// {deploy,the,cluster} vs {deploy,the,service}: 2 shared of 4 total.
	if got != 0.5 {
		t.Fatalf("jaccard = %v, want 0.5", got)
	}
	if Jaccard(a, nil) != 0 {
		t.Fatal("empty set should score 0")
	}
}

func TestOverlap(t *testing.T) {
	a := TokenSet("alpha beta gamma")
	b := TokenSet("beta gamma delta")
	if got := Overlap(a, b); got != 2 {
		t.Fatalf("overlap = %d, want 2", got)
	}
}
