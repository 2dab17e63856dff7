package entities

import "time"

// Product types that drive suggestion grouping and the door support-group hint.
const (
	ProductTypeDoor        = "door"
	ProductTypeControlCard = "control_card"
)

type ContactInfo struct {
	Phones   []string `json:"phones,omitempty"`
	WhatsApp []string `json:"whatsapp,omitempty"`
	Hours    string   `json:"hours,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}

type Branch struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	ContactInfo
}

type Department struct {
	Name string `json:"name"`
	ContactInfo
}

type Manual struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Product struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	URL     string   `json:"url"`
	Type    string   `json:"type,omitempty"`
	Aliases []string `json:"aliases,omitempty"`
	Specs   []string `json:"specs,omitempty"`
	Manuals []Manual `json:"manuals,omitempty"`
	Price   string   `json:"price,omitempty"`
}

func (p Product) IsDoor() bool { return p.Type == ProductTypeDoor }

type Greetings struct {
	Triggers []string `json:"triggers"`
	Reply    string   `json:"reply"`
}

type Link struct {
	URL string `json:"url"`
}

// Knowledge is the read-only data the dialog answers from. Slices keep
// declaration order, which is the tie-break for every detector.
type Knowledge struct {
	Greetings            Greetings    `json:"greetings"`
	Branches             []Branch     `json:"branches"`
	Departments          []Department `json:"departments"`
	Products             []Product    `json:"products"`
	Hotline              string       `json:"hotline,omitempty"`
	StoreURL             string       `json:"storeUrl,omitempty"`
	AutoDoorSupportGroup Link         `json:"autoDoorSupportGroup"`
	Malfunctions         Link         `json:"malfunctions"`
}

func (k *Knowledge) Product(id string) (Product, bool) {
	for _, p := range k.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func (k *Knowledge) BranchNames() []string {
	names := make([]string, 0, len(k.Branches))
	for _, b := range k.Branches {
		names = append(names, b.Name)
	}
	return names
}

func (k *Knowledge) DepartmentNames() []string {
	names := make([]string, 0, len(k.Departments))
	for _, d := range k.Departments {
		names = append(names, d.Name)
	}
	return names
}

// ScrapedPage is what the refresher extracted from one product page.
type ScrapedPage struct {
	ProductID string    `json:"product_id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Price     string    `json:"price,omitempty"`
	Text      string    `json:"text,omitempty"`
	Bullets   []string  `json:"bullets,omitempty"`
	PDFLinks  []Manual  `json:"pdf_links,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}
