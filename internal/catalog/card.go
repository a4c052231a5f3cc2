package catalog

import (
	"strconv"
	"strings"

	"github.com/John-Robertt/opcgdb/internal/code"
	"github.com/John-Robertt/opcgdb/internal/domain"
)

// Game 是 One Piece 卡牌在统一目录中的游戏标识。
const Game = "OP"

// Card 是跨游戏统一的卡牌目录条目。
//
// 一张卡由若干 Face 组成，每个 Face 又由若干 Part 组成（分割卡/双面卡）。
// One Piece 卡始终只有一个 Face、一个 Part。
type Card struct {
	ID          string  `json:"id"`
	Game        string  `json:"game"`
	Kind        string  `json:"kind"`
	ReferenceID string  `json:"reference_id"`
	Language    string  `json:"language"`
	SetName     string  `json:"set_name"`
	Rarity      string  `json:"rarity"`
	IsFoil      bool    `json:"is_foil"`
	FoilType    *string `json:"foil_type"`
	Number      *string `json:"number"`

	Faces []CardFace `json:"faces"`
}

type CardFace struct {
	Parts  []CardPart `json:"parts"`
	Layout string     `json:"layout"`
}

type CardPart struct {
	Name            string   `json:"name"`
	PrintedName     string   `json:"printed_name"`
	Text            string   `json:"text"`
	PrintedText     string   `json:"printed_text"`
	Type            string   `json:"type"`
	PrintedType     string   `json:"printed_type"`
	SubTypes        string   `json:"sub_types"`
	PrintedSubTypes string   `json:"printed_sub_types"`
	CardColors      []string `json:"card_colors"`
	Cost            *int     `json:"cost"`
	Artist          string   `json:"artist"`
	ImageSrc        string   `json:"image_src"`

	// One Piece 专有字段；其它游戏为空。
	AttackTypes string `json:"attack_types,omitempty"`
	Power       string `json:"power,omitempty"`
	Counter     string `json:"counter,omitempty"`
}

// Parts 按 face 顺序展开所有 part。
func (c Card) Parts() []CardPart {
	var out []CardPart
	for _, f := range c.Faces {
		out = append(out, f.Parts...)
	}
	return out
}

// DisplayName 返回第一个 face 的展示名：单 part 为其名字，多 part 用 " // " 连接；
// 没有 part 时回退到 ID。
func (c Card) DisplayName() string {
	if len(c.Faces) == 0 || len(c.Faces[0].Parts) == 0 {
		return c.ID
	}
	names := make([]string, 0, len(c.Faces[0].Parts))
	for _, p := range c.Faces[0].Parts {
		names = append(names, p.Name)
	}
	return strings.Join(names, " // ")
}

// FromRecord 把一条解析记录转换为统一目录条目。
// 缺失字段一律视为空串；cost 只有是整数时才填充。
func FromRecord(rec domain.CardRecord) Card {
	name := domain.Value(rec.Name)
	effect := domain.Value(rec.Effect)
	feature := domain.Value(rec.Feature)
	role := domain.Value(rec.Role)

	part := CardPart{
		Name:            name,
		PrintedName:     name,
		Text:            effect,
		PrintedText:     effect,
		Type:            role,
		PrintedType:     role,
		SubTypes:        feature,
		PrintedSubTypes: feature,
		CardColors:      []string{},
		Cost:            parseCost(domain.Value(rec.Cost)),
		ImageSrc:        domain.Value(rec.Image),
		AttackTypes:     domain.Value(rec.Attribute),
		Power:           domain.Value(rec.Power),
		Counter:         domain.Value(rec.Counter),
	}
	if color := domain.Value(rec.Color); color != "" {
		part.CardColors = []string{color}
	}

	c := Card{
		ID:          rec.ID,
		Game:        Game,
		Kind:        "card",
		ReferenceID: code.BaseNumber(rec.ID),
		Language:    rec.Lang,
		SetName:     rec.Set,
		Rarity:      domain.Value(rec.Rarity),
		Faces: []CardFace{{
			Parts:  []CardPart{part},
			Layout: "normal",
		}},
	}
	if rec.Code != nil {
		c.Number = domain.Str(*rec.Code)
	}
	return c
}

func parseCost(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}
