// Package hclplan loads declarative plans from .hcl files into the
// format-agnostic config model, and provides the function library and value
// conversions the plan expressions are evaluated with.
//
// A plan file looks like:
//
//	plan "echo_many" {
//	  description = "Echo every input word in parallel."
//
//	  stage "parallel-cmd" "echo" {
//	    numa     = true
//	    for_each = input.words
//	    command {
//	      name = "echo"
//	      args = [each.value]
//	    }
//	    into = "echoes"
//	  }
//
//	  output = [for r in vars.echoes : trimspace(r.stdout)]
//	}
package hclplan
