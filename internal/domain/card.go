package domain

// CardRecord 是一次解析得到的卡牌记录（每个 modalCol 块对应一条）。
//
// 约束：
//   - ID 必填（来自块自身的 id 属性，可能为空串但字段始终存在）
//   - 其余字段为 nil 表示“页面中没有对应结构”，JSON 输出时直接省略
//   - Cost..Extension 这一组只要 backCol 存在就一定非 nil（可能为 ""）：
//     "" 表示“块找到了但内容为空”，nil 表示“块本身不存在”
//   - Lang/Set 来自配置注入，不来自页面
//
// 字段顺序即 JSON 输出顺序，属于对外契约。
type CardRecord struct {
	ID string `json:"id"`

	Code   *string `json:"code,omitempty"`
	Rarity *string `json:"rarity,omitempty"`
	Role   *string `json:"role,omitempty"`
	Name   *string `json:"name,omitempty"`

	Image    *string `json:"image,omitempty"`
	ImageAlt *string `json:"image_alt,omitempty"`

	Cost      *string `json:"cost,omitempty"`
	Attribute *string `json:"attribute,omitempty"`
	Power     *string `json:"power,omitempty"`
	Counter   *string `json:"counter,omitempty"`
	Color     *string `json:"color,omitempty"`
	Feature   *string `json:"feature,omitempty"`
	Effect    *string `json:"effect,omitempty"`
	Extension *string `json:"extension,omitempty"`

	Lang string `json:"lang"`
	Set  string `json:"set"`
}

// Str 返回 s 的指针，便于构造可选字段。
func Str(s string) *string { return &s }

// Value 解引用可选字段；nil 视为 ""。
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// HasImage 报告该记录是否携带可下载的图片地址。
func (r CardRecord) HasImage() bool {
	return r.Image != nil && *r.Image != ""
}
