package usecases

import (
	"fmt"
	"regexp"
	"strings"

	"kasbot/internal/entities"
)

// TemporaryErrorReply is sent whenever a turn fails internally.
const TemporaryErrorReply = "حدث خطأ مؤقت. برجاء المحاولة مرة أخرى."

const maxSpecBullets = 8

var urlPattern = regexp.MustCompile(`https?://\S+`)

// ReplyFormatter assembles reply strings from templates and knowledge data.
// Strict mode strips emoji and keeps only the first link of a reply.
type ReplyFormatter struct {
	Strict bool
}

func (f ReplyFormatter) Finish(text string) string {
	text = strings.TrimSpace(text)
	if !f.Strict {
		return text
	}
	return oneLinkOnly(stripEmoji(text))
}

func stripEmoji(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 0x1F000 && r <= 0x1FFFF:
		case r >= 0x2600 && r <= 0x27BF:
		case r == 0xFE0F:
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func oneLinkOnly(s string) string {
	seen := false
	out := urlPattern.ReplaceAllStringFunc(s, func(u string) string {
		if seen {
			return ""
		}
		seen = true
		return u
	})
	return strings.TrimSpace(out)
}

func bulletList(items []string) string {
	return "- " + strings.Join(items, "\n- ")
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FormatContact renders phones, WhatsApp numbers, hours and notes; empty parts are skipped.
func FormatContact(c entities.ContactInfo) string {
	var b strings.Builder
	if phones := nonEmpty(c.Phones); len(phones) > 0 {
		b.WriteString("ارقام الهاتف:\n" + bulletList(phones) + "\n")
	}
	if wa := nonEmpty(c.WhatsApp); len(wa) > 0 {
		b.WriteString("واتساب:\n" + bulletList(wa) + "\n")
	}
	if c.Hours != "" {
		b.WriteString("مواعيد العمل:\n" + c.Hours + "\n")
	}
	if c.Notes != "" {
		b.WriteString(c.Notes + "\n")
	}
	return strings.TrimSpace(b.String())
}

func hotlineLine(k *entities.Knowledge) string {
	if k.Hotline == "" {
		return ""
	}
	return "☎️ الخط الساخن: " + k.Hotline
}

// DoorGroupHint invites door customers to the support group, or is empty when no group is configured.
func DoorGroupHint(k *entities.Knowledge) string {
	if k.AutoDoorSupportGroup.URL == "" {
		return ""
	}
	return "\n\nولمزيد من المعلومات وتفاصيل أكثر عن الأبواب الأوتوماتيك يمكنك الانضمام للجروب:\n" + k.AutoDoorSupportGroup.URL
}

func GreetingReply(k *entities.Knowledge) string {
	reply := k.Greetings.Reply
	if reply == "" {
		reply = "أهلاً 👋"
	}
	if h := hotlineLine(k); h != "" {
		reply += "\n\n" + h
	}
	return reply
}

func MalfunctionsReply(k *entities.Knowledge) string {
	if k.Malfunctions.URL == "" {
		return "رموز الأعطال غير مضافة حالياً."
	}
	return "رموز الاعطال والتنبيهات:\n" + k.Malfunctions.URL
}

func StoreReply(k *entities.Knowledge) string {
	if k.StoreURL == "" {
		return strings.TrimSpace("المتجر غير متاح حالياً.\n\n" + hotlineLine(k))
	}
	return "تقدر تتصفح كل المنتجات وتطلب مباشرة من المتجر:\n" + k.StoreURL
}

// PriceReply answers a price question for a product, or points at the store.
func PriceReply(k *entities.Knowledge, p *entities.Product) string {
	if p == nil {
		if k.StoreURL == "" {
			return strings.TrimSpace("للاستفسار عن الأسعار تواصل مع المبيعات.\n\n" + hotlineLine(k))
		}
		return "الأسعار محدثة على المتجر:\n" + k.StoreURL
	}
	if p.Price != "" {
		return fmt.Sprintf("سعر %s: %s\n\nرابط المنتج:\n%s", p.Name, p.Price, p.URL)
	}
	return fmt.Sprintf("سعر %s متاح على صفحة المنتج:\n%s", p.Name, p.URL)
}

func SupportGroupReply(k *entities.Knowledge) string {
	if k.AutoDoorSupportGroup.URL == "" {
		return "جروب الدعم غير متاح حالياً."
	}
	return "للانضمام لجروب الدعم الخاص بالأبواب الأوتوماتيك:\n" + k.AutoDoorSupportGroup.URL
}

func BranchMenu(k *entities.Knowledge) string {
	return "من فضلك حدّد الفرع المطلوب:\n" + bulletList(k.BranchNames())
}

func BranchReprompt(k *entities.Knowledge) string {
	return "مش واضح اسم الفرع. اختار واحد من دول:\n" + bulletList(k.BranchNames())
}

func BranchAddressReply(name string, b entities.Branch) string {
	reply := fmt.Sprintf("عنوان فرع %s:\n%s\n", name, b.Address)
	if contact := FormatContact(b.ContactInfo); contact != "" {
		reply += "\n" + contact
	}
	return reply
}

func AddressMissingReply(name string) string {
	return fmt.Sprintf("العنوان غير مُضاف بعد لفرع %s.", name)
}

func DepartmentMenu(k *entities.Knowledge) string {
	return "حضرتك تقصد أي قسم؟\n" + bulletList(k.DepartmentNames())
}

func DepartmentReply(name string, d entities.Department, hint string) string {
	return fmt.Sprintf("بيانات %s:\n%s%s", name, FormatContact(d.ContactInfo), hint)
}

func DepartmentMissingReply(name string) string {
	return "القسم غير موجود حالياً: " + name
}

func ProductPrompt() string {
	return "من فضلك حدّد اسم المنتج المطلوب لإرسال الدليل/المخطط."
}

// ProductReprompt lists up to four catalog names as examples.
func ProductReprompt(k *entities.Knowledge) string {
	names := make([]string, 0, 4)
	for _, p := range k.Products {
		if len(names) == cap(names) {
			break
		}
		names = append(names, p.Name)
	}
	if len(names) == 0 {
		return "اكتب اسم المنتج المطلوب."
	}
	return fmt.Sprintf("اكتب اسم المنتج المطلوب (مثال: %s).", strings.Join(names, " / "))
}

func ManualReply(m entities.Manual) string {
	return m.Title + ":\n" + m.URL
}

func NoManualsReply(p entities.Product) string {
	return "لا توجد ادلة مضافة حاليا.\nرابط المنتج:\n" + p.URL
}

// ProductReply shows the spec bullets when there are any, otherwise just the link.
func ProductReply(p entities.Product, hint string) string {
	specs := nonEmpty(p.Specs)
	if len(specs) > maxSpecBullets {
		specs = specs[:maxSpecBullets]
	}
	if len(specs) > 0 {
		return fmt.Sprintf("%s:\n%s\n\nرابط المنتج:\n%s%s", p.Name, bulletList(specs), p.URL, hint)
	}
	return fmt.Sprintf("رابط صفحة المنتج:\n%s%s", p.URL, hint)
}

func FallbackReply(k *entities.Knowledge) string {
	reply := "اكتب سؤالك بالشكل ده عشان أرد بسرعة:\n" +
		"- عنوان فرع (مثال: عنوان فرع الحلمية)\n" +
		"- رقم الدعم الفني\n" +
		"- أرقام المبيعات\n" +
		"- دليل + اسم المنتج"
	if h := hotlineLine(k); h != "" {
		reply += "\n\n" + h
	}
	return reply
}

var fallbackSuggestions = []entities.Suggestion{
	{Label: "عنوان فرع", Send: "عنوان فرع"},
	{Label: "رقم الدعم الفني", Send: "رقم الدعم الفني"},
	{Label: "أرقام المبيعات", Send: "أرقام المبيعات"},
	{Label: "دليل منتج", Send: "دليل"},
}

func FallbackSuggestions() []entities.Suggestion {
	return append([]entities.Suggestion(nil), fallbackSuggestions...)
}

func namesAsSuggestions(names []string) []entities.Suggestion {
	out := make([]entities.Suggestion, 0, len(names))
	for _, n := range names {
		out = append(out, entities.Suggestion{Label: n, Send: n})
	}
	return out
}

// ProductSuggestions lists products grouped by type, types in first-seen order.
func ProductSuggestions(k *entities.Knowledge) []entities.Suggestion {
	var order []string
	groups := make(map[string][]entities.Product)
	for _, p := range k.Products {
		if _, ok := groups[p.Type]; !ok {
			order = append(order, p.Type)
		}
		groups[p.Type] = append(groups[p.Type], p)
	}
	out := make([]entities.Suggestion, 0, len(k.Products))
	for _, t := range order {
		for _, p := range groups[t] {
			out = append(out, entities.Suggestion{Label: p.Name, Send: p.Name})
		}
	}
	return out
}
