// Package catalog holds the fixed label -> disease tables used to describe a
// classifier prediction.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

const (
	NumLabels = 14
	Normal    = 13
)

var names = map[int]string{
	0:  "Anemia",
	1:  "Polycythemia",
	2:  "Leukocytosis",
	3:  "Leukopenia",
	4:  "Thrombocytopenia",
	5:  "Thrombocytosis",
	6:  "Neutropenia",
	7:  "Neutrophilia",
	8:  "Lymphocytopenia",
	9:  "Lymphocytosis",
	10: "Monocytes high",
	11: "Eosinophil high",
	12: "Basophil high",
	13: "Normal",
}

// Bullets are kept byte-for-byte, including the odd leading and doubled
// spaces, because clients render the joined text as-is.
var causes = map[int][]string{
	0: {
		" - Anemia due to blood loss ",
		" - Bone marrow disorders ",
		" - Nutritional deficiency ",
		" - Chronic Kidney disease  ",
		" - Chronic inflammatory disease ",
	},
	1: {
		"- Dehydration, such as from severe diarrhea ",
		"- tumours ",
		"- Lung diseases ",
		"- Smoking ",
		"- Polycythemia vera ",
	},
	2: {
		"- Infection ",
		"- Leukemia ",
		"- Inflammation ",
		"- Stress, allergies, asthma ",
	},
	3: {
		"- Viral infection ",
		"- Severe bacterial infection ",
		"- Bone marrow disorders ",
		"- Autoimmune conditions ",
		"- Lymphoma ",
		"- Dietary deficiencies ",
	},
	4: {
		"- Cancer, such as leukemia or lymphoma ",
		"- Autoimmune diseases ",
		"- Bacterial infection ",
		"- Viral infection like dengue ",
		"- Chemotherapy or radiation therapy ",
		"- Certain drugs, such as nonsteroidal anti-inflammatory drugs (NSAIDs) ",
	},
	5: {
		"- Bone marrow disorders ",
		"- Essential thrombocythemia ",
		"- Anemia ",
		"- Infection ",
		"- Surgical removal of the spleen ",
		"- Polycythemia vera ",
		"- Some types of leukemia ",
	},
	6: {
		"- Severe infection ",
		"- Immunodeficiency ",
		"- Autoimmune disorders ",
		"- Dietary deficiencies ",
		"- Reaction to drugs ",
		"- Bone marrow damage ",
	},
	7: {
		"- Acute bacterial infections ",
		"- Inflammation ",
		"- Stress, Trauma ",
		"- Certain leukemias ",
	},
	8: {
		"- Autoimmune disorders ",
		"- Infections ",
		"- Bone marrow damage ",
		"- Corticosteroids ",
	},
	9: {
		"- Acute viral infections ",
		"- Certain bacterial infections ",
		"- Chronic inflammatory disorder ",
		"- Lymphocytic leukemia, lymphoma ",
		"- Acute stress ",
	},
	10: {
		"- Chronic infections ",
		"- Infection within the heart ",
		"- Collagen vascular diseases ",
		"- Monocytic or myelomonocytic leukemia ",
	},
	11: {
		"- Asthma, allergies such as hay fever ",
		"- Drug reactions ",
		"- Parasitic infections ",
		"- Inflammatory disorders ",
		"- Some cancers, leukemias or lymphomas ",
	},
	12: {
		"- Rare allergic reactions ",
		"- Inflammation ",
		"- Some leukemias ",
		"- Uremia ",
	},
	13: {
		"- Normal ",
	},
}

// UnknownLabelError reports a label with no catalog entry.
type UnknownLabelError struct {
	Label int
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("unknown disease label %d", e.Label)
}

type Entry struct {
	Label  int
	Name   string
	causes []string
}

// Causes returns a copy of the probable-cause bullets in display order.
func (e Entry) Causes() []string {
	out := make([]string, len(e.causes))
	copy(out, e.causes)
	return out
}

// CauseText joins the bullets the way clients expect them: one per line,
// each terminated by a newline.
func (e Entry) CauseText() string {
	var b strings.Builder
	for _, c := range e.causes {
		b.WriteString(c)
		b.WriteString("\n")
	}
	return b.String()
}

func Lookup(label int) (Entry, error) {
	name, ok := names[label]
	if !ok {
		return Entry{}, &UnknownLabelError{Label: label}
	}
	list, ok := causes[label]
	if !ok {
		return Entry{}, &UnknownLabelError{Label: label}
	}
	return Entry{Label: label, Name: name, causes: list}, nil
}

// Resolve returns the disease name and the cause text for label.
func Resolve(label int) (string, string, error) {
	entry, err := Lookup(label)
	if err != nil {
		return "", "", err
	}
	return entry.Name, entry.CauseText(), nil
}

func Valid(label int) bool {
	_, ok := names[label]
	return ok
}

// Labels returns every catalog label in ascending order.
func Labels() []int {
	out := make([]int, 0, len(names))
	for label := range names {
		out = append(out, label)
	}
	sort.Ints(out)
	return out
}

func All() []Entry {
	labels := Labels()
	out := make([]Entry, 0, len(labels))
	for _, label := range labels {
		entry, _ := Lookup(label)
		out = append(out, entry)
	}
	return out
}
