package feature

// Keys of built-in features referenced from code.
const (
	KeyGracePeriodDays = "subscription.gracePeriodDays"

	KeyLibraryEnabled      = "library.enabled"
	KeyLoansEnabled        = "library.loans.enabled"
	KeyLoanRenewalsEnabled = "library.loans.renewals.enabled"
	KeyLoansMaxActive      = "library.loans.maxActive"
	KeyReservationsEnabled = "library.reservations.enabled"
	KeyFinePerDay          = "library.finePerDay"
	KeyPluginsEnabled      = "plugins.enabled"
	KeyPluginMarketEnabled = "plugins.marketplace.enabled"
	KeyBrandingTheme       = "branding.theme"
	KeyStorageMaxGB        = "storage.maxGb"
	KeyUsersMaxCount       = "users.maxCount"
)

// BuiltinDefinitions returns the catalog every deployment starts with.
// Definitions loaded from a YAML file are appended to this list.
func BuiltinDefinitions() []Definition {
	return []Definition{
		{
			Key:          KeyGracePeriodDays,
			ValueType:    TypeInt,
			DefaultValue: "7",
			Scope:        ScopeHost,
			DisplayName:  "Grace period (days)",
			Description:  "Days of access kept after a failed payment.",
			SortOrder:    10,
			NonNegative:  true,
		},
		{
			Key:                KeyLibraryEnabled,
			ValueType:          TypeBoolean,
			DefaultValue:       "true",
			DisplayName:        "Library",
			SortOrder:          100,
			IsVisibleToClients: true,
			IsEditionFeature:   true,
		},
		{
			Key:                KeyLoansEnabled,
			ValueType:          TypeBoolean,
			DefaultValue:       "true",
			ParentKey:          KeyLibraryEnabled,
			DisplayName:        "Loans",
			SortOrder:          110,
			IsVisibleToClients: true,
			IsEditionFeature:   true,
		},
		{
			Key:                KeyLoanRenewalsEnabled,
			ValueType:          TypeBoolean,
			DefaultValue:       "false",
			ParentKey:          KeyLoansEnabled,
			DisplayName:        "Loan renewals",
			SortOrder:          111,
			IsVisibleToClients: true,
			IsEditionFeature:   true,
			IsTenantEditable:   true,
		},
		{
			Key:              KeyLoansMaxActive,
			ValueType:        TypeInt,
			DefaultValue:     "5",
			ParentKey:        KeyLoansEnabled,
			DisplayName:      "Active loans per member",
			SortOrder:        112,
			IsEditionFeature: true,
			IsTenantEditable: true,
			NonNegative:      true,
		},
		{
			Key:                KeyReservationsEnabled,
			ValueType:          TypeBoolean,
			DefaultValue:       "false",
			ParentKey:          KeyLibraryEnabled,
			DisplayName:        "Reservations",
			SortOrder:          120,
			IsVisibleToClients: true,
			IsEditionFeature:   true,
		},
		{
			Key:              KeyFinePerDay,
			ValueType:        TypeDecimal,
			DefaultValue:     "0.25",
			DisplayName:      "Overdue fine per day",
			SortOrder:        130,
			IsTenantEditable: true,
			NonNegative:      true,
		},
		{
			Key:              KeyPluginsEnabled,
			ValueType:        TypeBoolean,
			DefaultValue:     "false",
			DisplayName:      "Plugins",
			SortOrder:        200,
			IsEditionFeature: true,
		},
		{
			Key:              KeyPluginMarketEnabled,
			ValueType:        TypeBoolean,
			DefaultValue:     "false",
			ParentKey:        KeyPluginsEnabled,
			DisplayName:      "Plugin marketplace",
			SortOrder:        210,
			IsEditionFeature: true,
		},
		{
			Key:                KeyBrandingTheme,
			ValueType:          TypeString,
			DefaultValue:       "default",
			DisplayName:        "Theme",
			SortOrder:          300,
			IsVisibleToClients: true,
			IsTenantEditable:   true,
			Options:            []string{"default", "light", "dark"},
		},
		{
			Key:              KeyStorageMaxGB,
			ValueType:        TypeDecimal,
			DefaultValue:     "1",
			DisplayName:      "Storage quota (GB)",
			SortOrder:        400,
			IsEditionFeature: true,
			NonNegative:      true,
		},
		{
			Key:              KeyUsersMaxCount,
			ValueType:        TypeInt,
			DefaultValue:     "3",
			DisplayName:      "Staff accounts",
			SortOrder:        410,
			IsEditionFeature: true,
			NonNegative:      true,
		},
	}
}
