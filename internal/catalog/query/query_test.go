package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/opcgdb/internal/catalog"
)

func str(s string) *string { return &s }

func part(name, typ, artist string) catalog.CardPart {
	return catalog.CardPart{Name: name, Type: typ, Artist: artist, Text: "Some text for " + name}
}

func testCards() []catalog.Card {
	return []catalog.Card{
		{
			ID: "1", Game: "FAB", ReferenceID: "HNT-104", Language: "English", SetName: "HNT",
			Number: str("104"), Rarity: "Common",
			Faces: []catalog.CardFace{{Layout: "Normal", Parts: []catalog.CardPart{part("Part1", "Monster", "Artist1")}}},
		},
		{
			ID: "2", Game: "FAB", ReferenceID: "HNT-106", Language: "English", SetName: "HNT",
			Number: str("106"), Rarity: "Common",
			Faces: []catalog.CardFace{{Layout: "Normal", Parts: []catalog.CardPart{part("Part1", "Monster", "Artist1")}}},
		},
		{
			ID: "OP10-005", Game: "OP", ReferenceID: "OP10-005", Language: "English", SetName: "OP10",
			Rarity: "Rare", IsFoil: true, FoilType: str("Holo"),
			Faces: []catalog.CardFace{{Layout: "Split", Parts: []catalog.CardPart{
				part("NameA", "Warrior", "ArtistA"),
				part("NameB", "Artifact", "ArtistB"),
			}}},
		},
		{
			ID: "OP10-005_p1", Game: "OP", ReferenceID: "OP10-005", Language: "English", SetName: "OP10",
			Number: str("OP10-005"), Rarity: "Common", IsFoil: true,
			Faces: []catalog.CardFace{{Layout: "Normal", Parts: []catalog.CardPart{part("NameC", "Warrior", "ArtistC")}}},
		},
	}
}

func ids(cards []catalog.Card) []string {
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.ID)
	}
	return out
}

func TestSearch_Filters(t *testing.T) {
	cases := []struct {
		query string
		want  []string
	}{
		{query: "g:OP", want: []string{"OP10-005", "OP10-005_p1"}},
		{query: "game:op", want: []string{"OP10-005", "OP10-005_p1"}},
		{query: "r:Common", want: []string{"1", "2", "OP10-005_p1"}},
		{query: "rarity:common", want: []string{"1", "2", "OP10-005_p1"}},
		{query: "s:HNT", want: []string{"1", "2"}},
		{query: "set:HNT", want: []string{"1", "2"}},
		{query: "number:104", want: []string{"1"}},
		{query: "language:english", want: []string{"1", "2", "OP10-005", "OP10-005_p1"}},
		{query: "foil:true", want: []string{"OP10-005", "OP10-005_p1"}},
		{query: "t:Warrior", want: []string{"OP10-005", "OP10-005_p1"}},
		{query: "type:artifact", want: []string{"OP10-005"}},
		{query: "n:Part1", want: []string{"1", "2"}},
		{query: "name:Part1", want: []string{"1", "2"}},
		{query: "n:PartUnk", want: []string{}},
		{query: "name~NameA", want: []string{"OP10-005"}},
		{query: "name~name", want: []string{"OP10-005", "OP10-005_p1"}},
		{query: "name=namec", want: []string{"OP10-005_p1"}},
		{query: "artist:artistb", want: []string{"OP10-005"}},
		{query: "text~\"text for Part1\"", want: []string{"1", "2"}},
		{query: `n:"Part1"`, want: []string{"1", "2"}},
		{query: "set:OP10 AND name=namec", want: []string{"OP10-005_p1"}},
		{query: "set:OP10 name:namec", want: []string{"OP10-005_p1"}},
		{query: "s:HNT OR n:NameC", want: []string{"1", "2", "OP10-005_p1"}},
		{query: "-g:OP", want: []string{"1", "2"}},
		{query: "NOT g:OP", want: []string{"1", "2"}},
		{query: "(s:HNT OR g:OP) -r:Common", want: []string{"OP10-005"}},
		{query: "(-g:OP)", want: []string{"1", "2"}},
		{query: "number:104 OR number:106 AND r:Rare", want: []string{"1"}},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			got, err := Search(testCards(), tc.query)
			require.NoError(t, err)
			require.Equal(t, tc.want, ids(got))
		})
	}
}

func TestSearch_EmptyQueryReturnsAll(t *testing.T) {
	for _, q := range []string{"", "   "} {
		got, err := Search(testCards(), q)
		require.NoError(t, err)
		require.Len(t, got, 4)
	}
}

func TestSearch_BareCardNumber(t *testing.T) {
	got, err := Search(testCards(), "op10-005")
	require.NoError(t, err)
	require.Equal(t, []string{"OP10-005", "OP10-005_p1"}, ids(got))

	got, err = Search(testCards(), "OP10-005_p1")
	require.NoError(t, err)
	require.Equal(t, []string{"OP10-005_p1"}, ids(got))
}

func TestSearch_BareTermIsFuzzyName(t *testing.T) {
	got, err := Search(testCards(), "nmc")
	require.NoError(t, err)
	require.Equal(t, []string{"OP10-005_p1"}, ids(got))
}

func TestSearch_FuzzyRanksCloserNamesFirst(t *testing.T) {
	cards := []catalog.Card{
		{ID: "a", Faces: []catalog.CardFace{{Parts: []catalog.CardPart{{Name: "xxlxuxfxfxy"}}}}},
		{ID: "b", Faces: []catalog.CardFace{{Parts: []catalog.CardPart{{Name: "Sabo"}}}}},
		{ID: "c", Faces: []catalog.CardFace{{Parts: []catalog.CardPart{{Name: "Luffy"}}}}},
	}

	got, err := Search(cards, "luffy")
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a"}, ids(got))
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		query   string
		unknown bool
	}{
		{query: "foo:bar", unknown: true},
		{query: "name:"},
		{query: "name: Part1"},
		{query: "(n:a"},
		{query: "n:a )"},
		{query: `n:"abc`},
		{query: "AND"},
		{query: "n:a OR"},
		{query: ":a"},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			_, err := Parse(tc.query)
			require.Error(t, err)
			var ue *UnknownFieldError
			var se *SyntaxError
			if tc.unknown {
				require.True(t, errors.As(err, &ue), "期望 UnknownFieldError，实际 %T", err)
				return
			}
			require.True(t, errors.As(err, &se), "期望 SyntaxError，实际 %T", err)
		})
	}
}
