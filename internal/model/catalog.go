package model

// Category is a classification axis for procurable items.
type Category struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Description string `json:"description" gorm:"type:text;not null;uniqueIndex"`
}

// Material is the second classification axis, independent of Category.
type Material struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Description string `json:"description" gorm:"type:text;not null;uniqueIndex"`
}

// Supplier is reference data; the RFQ workflow never mutates it.
type Supplier struct {
	ID    uint   `json:"id" gorm:"primaryKey"`
	Name  string `json:"name" gorm:"type:text;not null;index"`
	Email string `json:"email" gorm:"type:text;not null;uniqueIndex"`
}

// SupplierMaterial records that a supplier can fulfill a material within a category.
type SupplierMaterial struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	SupplierID uint `json:"supplier_id" gorm:"not null;uniqueIndex:uix_supplier_category_material"`
	CategoryID uint `json:"category_id" gorm:"not null;uniqueIndex:uix_supplier_category_material"`
	MaterialID uint `json:"material_id" gorm:"not null;uniqueIndex:uix_supplier_category_material"`

	Supplier *Supplier `json:"supplier,omitempty"`
	Category *Category `json:"category,omitempty"`
	Material *Material `json:"material,omitempty"`
}

func (Category) TableName() string         { return "categories" }
func (Material) TableName() string         { return "materials" }
func (Supplier) TableName() string         { return "suppliers" }
func (SupplierMaterial) TableName() string { return "supplier_materials" }
