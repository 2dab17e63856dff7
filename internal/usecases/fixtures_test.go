package usecases

import (
	"kasbot/internal/entities"
)

type staticProvider struct {
	snap *entities.Snapshot
}

func (p staticProvider) Current() *entities.Snapshot { return p.snap }

func providerFor(k *entities.Knowledge) staticProvider {
	return staticProvider{snap: &entities.Snapshot{Version: 1, Knowledge: k}}
}

func testKnowledge() *entities.Knowledge {
	return &entities.Knowledge{
		Greetings: entities.Greetings{
			Triggers: []string{"السلام عليكم", "ازيك", "hello"},
			Reply:    "أهلاً بيك في KAS",
		},
		Hotline:              "19460",
		StoreURL:             "https://egy-tronix.com/shop/",
		AutoDoorSupportGroup: entities.Link{URL: "https://chat.example.com/doors"},
		Malfunctions:         entities.Link{URL: "https://egy-tronix.com/errors/"},
		Branches: []entities.Branch{
			{Name: "فيصل", Address: "24 شارع فيصل", ContactInfo: entities.ContactInfo{Phones: []string{"0100"}}},
			{Name: "حلمية الزيتون", Address: "12 شارع طومان باي", ContactInfo: entities.ContactInfo{Phones: []string{"0101"}, Hours: "10-7"}},
			{Name: "الإسكندرية", Address: "5 شارع سموحة", ContactInfo: entities.ContactInfo{WhatsApp: []string{"0102"}}},
			{Name: "المنصورة"},
		},
		Departments: []entities.Department{
			{Name: "الدعم الفني", ContactInfo: entities.ContactInfo{Phones: []string{"0110"}, WhatsApp: []string{"0111"}}},
			{Name: "خدمة العملاء", ContactInfo: entities.ContactInfo{Phones: []string{"0112"}}},
			{Name: "المبيعات", ContactInfo: entities.ContactInfo{Phones: []string{"0113"}}},
		},
		Products: []entities.Product{
			{
				ID:    "kas_2025",
				Name:  "كارت KAS 2025",
				Type:  entities.ProductTypeControlCard,
				URL:   "https://egy-tronix.com/p/kas-2025",
				Specs: []string{"16 وقفة", "شاشة تحكم"},
				Manuals: []entities.Manual{
					{Title: "دليل المستخدم", URL: "https://egy-tronix.com/kas-2025.pdf"},
					{Title: "مخطط التوصيل", URL: "https://egy-tronix.com/kas-2025-wiring.pdf"},
				},
			},
			{
				ID:      "kas_2021",
				Name:    "كارت KAS 2021",
				Type:    entities.ProductTypeControlCard,
				URL:     "https://egy-tronix.com/p/kas-2021",
				Manuals: []entities.Manual{{Title: "دليل 2021", URL: "https://egy-tronix.com/kas-2021.pdf"}},
			},
			{
				ID:    "mini_8",
				Name:  "كارت ميني 8",
				Type:  entities.ProductTypeControlCard,
				URL:   "https://egy-tronix.com/p/mini-8",
				Price: "4500 جنيه",
			},
			{
				ID:    "folding_door",
				Name:  "باب فولدينج",
				Type:  entities.ProductTypeDoor,
				URL:   "https://egy-tronix.com/p/folding-door",
				Specs: []string{"موتور هادئ"},
			},
			{
				ID:   "automatic_door",
				Name: "باب أوتوماتيك",
				Type: entities.ProductTypeDoor,
				URL:  "https://egy-tronix.com/p/automatic-door",
			},
		},
	}
}
