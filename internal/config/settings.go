package config

// settingKinds maps top level setting names to their JSON schema type.
var settingKinds = map[string]string{
	"mssql_connection_config": "object",
	"start_date":              "string",
	"hd_jsonschema_types":     "boolean",
	"filter_schemas":          "array",
	"batch_config":            "object",
	"state_message_frequency": "integer",
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": []string{typ}, "description": description}
}

func object(required []string, props map[string]any) map[string]any {
	out := map[string]any{"type": []string{"object"}, "properties": props}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// SettingsSchema returns the JSON schema of the settings document, as
// printed by --about.
func SettingsSchema() map[string]any {
	password := prop("string", "Password used to authenticate with the MSSQL server")
	password["secret"] = true
	driverType := prop("string", "Database driver. Legacy pyodbc and pymssql values are accepted and mapped to sqlserver.")
	driverType["enum"] = []string{"sqlserver", "pyodbc", "pymssql"}
	driverType["default"] = DefaultDriverType
	port := prop("integer", "The port number for the MSSQL server")
	port["default"] = DefaultPort
	encrypt := prop("string", "TLS mode of the connection")
	encrypt["enum"] = []string{"disable", "false", "true", "strict"}
	encrypt["default"] = "true"
	clientSecret := prop("string", "Azure AD application secret")
	clientSecret["secret"] = true
	accessToken := prop("string", "Pre-acquired Azure AD access token")
	accessToken["secret"] = true
	sshPassword := prop("string", "SSH password")
	sshPassword["secret"] = true
	sshKey := prop("string", "PEM encoded SSH private key")
	sshKey["secret"] = true
	compression := prop("string", "Batch file compression")
	compression["enum"] = []string{"gzip", "none"}
	startDate := prop("string", "Earliest date/time replication key value to sync when no bookmark exists")
	startDate["format"] = "date-time"

	connection := object([]string{"host", "database"}, map[string]any{
		"host":                     prop("string", "The hostname or IP address of the MSSQL server"),
		"port":                     port,
		"database":                 prop("string", "The name of the database to connect to"),
		"user":                     prop("string", "Username used to authenticate with the MSSQL server"),
		"password":                 password,
		"driver_type":              driverType,
		"sqlalchemy_url_query":     prop("object", "Extra connection string parameters"),
		"sqlalchemy_eng_params":    prop("object", "Pool settings: pool_size, max_overflow, pool_recycle, echo"),
		"encrypt":                  encrypt,
		"trust_server_certificate": prop("boolean", "Skip server certificate validation"),
		"azure_ad": object(nil, map[string]any{
			"tenant_id":     prop("string", "Azure AD tenant"),
			"client_id":     prop("string", "Azure AD application id"),
			"client_secret": clientSecret,
			"token_url":     prop("string", "Token endpoint, derived from tenant_id when empty"),
			"scope":         prop("string", "Token scope"),
			"access_token":  accessToken,
		}),
		"ssh_tunnel": object([]string{"host", "username"}, map[string]any{
			"host":                   prop("string", "SSH bastion host"),
			"port":                   prop("integer", "SSH bastion port"),
			"username":               prop("string", "SSH user"),
			"password":               sshPassword,
			"private_key":            sshKey,
			"private_key_passphrase": prop("string", "Passphrase of the private key"),
			"host_key":               prop("string", "Expected host key in authorized_keys format"),
		}),
	})
	connection["description"] = "MSSQL connection configuration"

	return object([]string{"mssql_connection_config"}, map[string]any{
		"mssql_connection_config": connection,
		"start_date":              startDate,
		"hd_jsonschema_types":     prop("boolean", "Emit high definition JSON schema types"),
		"filter_schemas": map[string]any{
			"type":        []string{"array"},
			"items":       map[string]any{"type": []string{"string"}},
			"description": "Only discover these database schemas",
		},
		"batch_config": object(nil, map[string]any{
			"encoding": object(nil, map[string]any{
				"format":      prop("string", "Batch file format, jsonl"),
				"compression": compression,
			}),
			"storage": object(nil, map[string]any{
				"root":   prop("string", "file:// or s3:// root for batch files"),
				"prefix": prop("string", "Batch file name prefix"),
			}),
			"batch_size": prop("integer", "Records per batch file"),
		}),
		"state_message_frequency": prop("integer", "Records between STATE messages"),
	})
}
