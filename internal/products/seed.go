package products

import "github.com/angelmondragon/neurocare-backend/pkg/enums"

// defaultCatalog mirrors the pharmacy shelf shown to patients.
var defaultCatalog = []Product{
	{
		ID:                   "med-aspirin-75",
		ProductName:          "Aspirin 75mg",
		Category:             enums.ProductCategoryBloodThinners,
		ImageURL:             "https://placehold.co/300x200.png",
		ImageHint:            "medicine strip",
		Price:                50.00,
		InStock:              true,
		Description:          "Low-dose aspirin for secondary stroke prevention.",
		Tags:                 []string{"stroke recovery", "heart health"},
		PrescriptionRequired: true,
	},
	{
		ID:          "sup-vitamin-d3",
		ProductName: "Vitamin D3 1000 IU",
		Category:    enums.ProductCategorySupplements,
		ImageURL:    "https://placehold.co/300x200.png",
		ImageHint:   "supplement bottle",
		Price:       120.00,
		InStock:     true,
		Description: "Daily vitamin D3 to support bone and nerve health.",
		Tags:        []string{"bone health", "general wellness"},
	},
	{
		ID:                   "med-clopidogrel-75",
		ProductName:          "Clopidogrel 75mg",
		Category:             enums.ProductCategoryBloodThinners,
		ImageURL:             "https://placehold.co/300x200.png",
		ImageHint:            "tablet pack",
		Price:                95.50,
		InStock:              true,
		Description:          "Antiplatelet medication used after ischemic stroke.",
		Tags:                 []string{"stroke recovery", "neuro meds"},
		PrescriptionRequired: true,
	},
	{
		ID:                   "med-atorvastatin-20",
		ProductName:          "Atorvastatin 20mg",
		Category:             enums.ProductCategoryCholesterol,
		ImageURL:             "https://placehold.co/300x200.png",
		ImageHint:            "tablet pack",
		Price:                110.00,
		InStock:              true,
		Description:          "Statin that lowers LDL cholesterol to reduce stroke risk.",
		Tags:                 []string{"heart health"},
		PrescriptionRequired: true,
	},
	{
		ID:          "sup-omega-3",
		ProductName: "Omega-3 Fish Oil",
		Category:    enums.ProductCategorySupplements,
		ImageURL:    "https://placehold.co/300x200.png",
		ImageHint:   "capsules",
		Price:       349.00,
		InStock:     true,
		Description: "EPA and DHA capsules for cardiovascular and cognitive support.",
		Tags:        []string{"brain health", "heart health"},
	},
	{
		ID:          "sup-b12",
		ProductName: "Methylcobalamin B12",
		Category:    enums.ProductCategorySupplements,
		ImageURL:    "https://placehold.co/300x200.png",
		ImageHint:   "supplement bottle",
		Price:       185.00,
		InStock:     false,
		Description: "Active vitamin B12 for nerve repair and energy.",
		Tags:        []string{"neuro meds", "nerve health"},
	},
	{
		ID:          "pain-paracetamol-500",
		ProductName: "Paracetamol 500mg",
		Category:    enums.ProductCategoryPainRelief,
		ImageURL:    "https://placehold.co/300x200.png",
		ImageHint:   "tablet strip",
		Price:       25.00,
		InStock:     true,
		Description: "Relief from headache and mild to moderate pain.",
		Tags:        []string{"pain relief"},
	},
	{
		ID:                   "med-levetiracetam-500",
		ProductName:          "Levetiracetam 500mg",
		Category:             enums.ProductCategoryAnticonvulsants,
		ImageURL:             "https://placehold.co/300x200.png",
		ImageHint:            "tablet pack",
		Price:                210.00,
		InStock:              true,
		Description:          "Anti-seizure medication used in epilepsy and post-stroke seizures.",
		Tags:                 []string{"neuro meds", "epilepsy"},
		PrescriptionRequired: true,
	},
}
