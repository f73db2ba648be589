package permissions

import "sort"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleSeller  Role = "seller"
)

func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

type Capability string

const (
	ViewDashboard  Capability = "view_dashboard"
	ViewStatistics Capability = "view_statistics"

	ViewClients  Capability = "view_clients"
	CreateClient Capability = "create_client"
	EditClient   Capability = "edit_client"
	DeleteClient Capability = "delete_client"

	ViewProducts  Capability = "view_products"
	CreateProduct Capability = "create_product"
	EditProduct   Capability = "edit_product"
	DeleteProduct Capability = "delete_product"

	ViewSales    Capability = "view_sales"
	CreateSale   Capability = "create_sale"
	EditSale     Capability = "edit_sale"
	DeleteSale   Capability = "delete_sale"
	ValidateSale Capability = "validate_sale"

	ViewUsers  Capability = "view_users"
	CreateUser Capability = "create_user"
	EditUser   Capability = "edit_user"
	DeleteUser Capability = "delete_user"

	ViewSettings Capability = "view_settings"
	EditSettings Capability = "edit_settings"
	ExportData   Capability = "export_data"
)

var allCapabilities = []Capability{
	ViewDashboard, ViewStatistics,
	ViewClients, CreateClient, EditClient, DeleteClient,
	ViewProducts, CreateProduct, EditProduct, DeleteProduct,
	ViewSales, CreateSale, EditSale, DeleteSale, ValidateSale,
	ViewUsers, CreateUser, EditUser, DeleteUser,
	ViewSettings, EditSettings, ExportData,
}

// roleCapabilities is built once at init and never written afterwards.
var roleCapabilities = map[Role]map[Capability]struct{}{
	RoleAdmin: setOf(allCapabilities...),
	RoleManager: setOf(
		ViewDashboard, ViewStatistics,
		ViewClients, ViewProducts, ViewSales,
		ValidateSale, ExportData,
	),
	RoleSeller: setOf(
		ViewDashboard,
		ViewClients, ViewProducts,
		ViewSales, CreateSale,
	),
}

func setOf(caps ...Capability) map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// HasCapability reports whether role grants capability. Unknown roles grant nothing.
func HasCapability(role Role, capability Capability) bool {
	_, ok := roleCapabilities[role][capability]
	return ok
}

// Capabilities returns a sorted copy of what role grants.
func Capabilities(role Role) []Capability {
	set := roleCapabilities[role]
	out := make([]Capability, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Caller identifies who performs an operation. It is passed explicitly to
// every mutating call instead of living in process-wide state.
type Caller struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (c Caller) Can(capability Capability) bool {
	return HasCapability(c.Role, capability)
}

// UserRef is the nullable user column value for rows recorded by c.
func (c Caller) UserRef() *int64 {
	if c.UserID == 0 {
		return nil
	}
	id := c.UserID
	return &id
}
