package welcome

import (
	"fmt"
	"os"
	"strings"
)

const (
	SlotMember = "{member_mention}"
	SlotGroup  = "{server_name}"
)

// DefaultTemplate is the built-in welcome DM.
const DefaultTemplate = `**{member_mention} مرحبًا بك في السيرفر**
{server_name}
**نرحب بك في سيرفرنا ونتمنى لك تجربة مميزة**.

**يرجى التكرم بمراجعة القوانين لضمان التزام الجميع وحفاظًا على بيئة محترمة وآمنة**

▫️ https://discord.com/channels/1296070387209076848/1312824014347178004
▫️ https://discord.com/channels/1296070387209076848/1312824025059430460

**الالتزام بالقوانين يساهم في تعزيز جودة تجربتك داخل السيرفر.**

**السيرفر فيه نقل متاح لكل من يرغب، والفرصة متاحة للجميع**
▫️https://discord.com/channels/1296070387209076848/1377374964579041391
**تعالوا وشرفونا، وخلونا نبني مجتمع راقي وممتع مع بعض**

-# في حال وجود أي استفسار أو احتياج للمساعدة، لا تتردد في التواصل مع طاقم الإدارة، فنحن هنا لخدمتك

` + "`هذا هو الـ IP للدخول المباشر إلى السيرفر`" + `
cfx.re/join/m8mdxq`

// Template is an immutable welcome text with member and group slots.
type Template struct {
	text string
}

func NewTemplate(text string) Template { return Template{text: text} }

func (t Template) Text() string { return t.text }

// Render substitutes both slots. Every other byte of the template is kept.
func (t Template) Render(memberRef, groupName string) string {
	return Render(t.text, memberRef, groupName)
}

// Render fills {member_mention} and {server_name} in template.
// Substituted values are never rescanned, so a group named "{member_mention}"
// is inserted literally.
func Render(template, memberRef, groupName string) string {
	return strings.NewReplacer(SlotMember, memberRef, SlotGroup, groupName).Replace(template)
}

// LoadTemplate picks the template source: inline text, then file, then the built-in default.
func LoadTemplate(inline, file string) (Template, error) {
	if strings.TrimSpace(inline) != "" {
		return NewTemplate(inline), nil
	}
	if path := strings.TrimSpace(file); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Template{}, fmt.Errorf("welcome template: %w", err)
		}
		text := strings.TrimRight(string(b), "\r\n")
		if strings.TrimSpace(text) == "" {
			return Template{}, fmt.Errorf("welcome template %s: file is empty", path)
		}
		return NewTemplate(text), nil
	}
	return NewTemplate(DefaultTemplate), nil
}
